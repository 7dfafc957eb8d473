package session

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is how often the timestamp advances.
const DefaultTickInterval = 10 * time.Millisecond

// seedRange bounds the random values counters start from and reset to.
const seedRange = 1000

// Generator supplies response sequence numbers and the shared timestamp.
// It is safe for concurrent use; both counters are lock-free so the ticker
// never blocks connection handlers.
type Generator struct {
	seq      atomic.Uint32
	ts       atomic.Uint32
	interval time.Duration
	seed     func() uint32
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithInterval sets the timestamp tick period.
func WithInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithSeedFunc replaces the random seed source used at start and on overflow.
func WithSeedFunc(fn func() uint32) GeneratorOption {
	return func(g *Generator) {
		if fn != nil {
			g.seed = fn
		}
	}
}

// WithStart fixes the initial counter values.
func WithStart(seq, ts uint32) GeneratorOption {
	return func(g *Generator) {
		g.seq.Store(seq)
		g.ts.Store(ts)
	}
}

func randomSeed() uint32 {
	return uint32(rand.IntN(seedRange))
}

// NewGenerator seeds both counters with small random values.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		interval: DefaultTickInterval,
		seed:     randomSeed,
	}
	g.seq.Store(g.seed())
	g.ts.Store(g.seed())
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// advance increments c, resetting it to a fresh small seed instead of
// wrapping when it is already at the 32-bit maximum.
func (g *Generator) advance(c *atomic.Uint32) uint32 {
	for {
		cur := c.Load()
		next := cur + 1
		if cur == math.MaxUint32 {
			next = g.seed()
		}
		if c.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// NextSequence increments the sequence counter and returns the new value.
func (g *Generator) NextSequence() uint32 {
	return g.advance(&g.seq)
}

// CurrentTimestamp returns the timestamp without advancing it.
func (g *Generator) CurrentTimestamp() uint32 {
	return g.ts.Load()
}

// Tick advances the timestamp by one period.
func (g *Generator) Tick() uint32 {
	return g.advance(&g.ts)
}

// Interval returns the tick period.
func (g *Generator) Interval() time.Duration {
	return g.interval
}

// Run ticks the timestamp every interval until ctx is done.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	log.Debug().
		Dur("interval", g.interval).
		Uint32("seq", g.seq.Load()).
		Uint32("ts", g.ts.Load()).
		Msg("session.Generator started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.Tick()
		}
	}
}
