package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/imagedb/internal/protocol/bits"
	"github.com/danmuck/imagedb/internal/protocol/schema"
)

const FixedHeaderLen = schema.HeaderBytes

var (
	ErrShortHeader     = errors.New("frame: short fixed header")
	ErrTruncated       = errors.New("frame: truncated packet")
	ErrEmptyMessage    = errors.New("frame: peer closed without sending")
	ErrMessageTooLarge = errors.New("frame: message too large")
)

// Limits constrains receive memory use.
type Limits struct {
	MaxMessageBytes int64
	MaxNameBytes    uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 64 * 1024 * 1024,
		MaxNameBytes:    4 * 1024,
	}
}

// EncodeHeader packs values into a fixed header using layout. Fields of the
// layout missing from values are zero.
func EncodeHeader(layout schema.Layout, values map[string]uint64) ([]byte, error) {
	if err := layout.CheckValues(values); err != nil {
		return nil, err
	}
	buf := make([]byte, FixedHeaderLen)
	for _, f := range layout.Fields {
		bits.MustWriteField(buf, values[f.Name], f.Offset, f.Length)
	}
	return buf, nil
}

// DecodeHeader unpacks the first FixedHeaderLen bytes of b using layout.
// Decoding with the wrong layout yields well-formed but meaningless values.
func DecodeHeader(layout schema.Layout, b []byte) (map[string]uint64, error) {
	if len(b) < FixedHeaderLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}
	out := make(map[string]uint64, len(layout.Fields))
	for _, f := range layout.Fields {
		out[f.Name] = bits.MustReadField(b[:FixedHeaderLen], f.Offset, f.Length)
	}
	return out, nil
}

// ReceiveOneMessage reads r until the peer closes its write side and returns
// every byte received, in order. ITP has no whole-message length prefix, so
// end-of-stream is the message boundary. An empty result is not an error here;
// callers decide what a silent close means.
func ReceiveOneMessage(r io.Reader, limits Limits) ([]byte, error) {
	max := limits.MaxMessageBytes
	if max <= 0 {
		max = DefaultLimits().MaxMessageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, max)
	}
	return data, nil
}

// ReceiveRequest reads exactly one request packet: the fixed header followed
// by imageNameLength payload bytes. It does not wait for end-of-stream, so a
// request split across TCP segments is reassembled.
func ReceiveRequest(r io.Reader, limits Limits) ([]byte, error) {
	head := make([]byte, FixedHeaderLen)
	n, err := io.ReadFull(r, head)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, ErrEmptyMessage
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d bytes", ErrShortHeader, n)
		}
		return nil, err
	}

	f, _ := schema.RequestLayout.Lookup(schema.FieldImageNameLength)
	nameLen := bits.MustReadField(head, f.Offset, f.Length)
	maxName := limits.MaxNameBytes
	if maxName == 0 {
		maxName = DefaultLimits().MaxNameBytes
	}
	if nameLen > maxName {
		return nil, fmt.Errorf("%w: name length %d exceeds %d", ErrMessageTooLarge, nameLen, maxName)
	}

	packet := make([]byte, FixedHeaderLen+int(nameLen))
	copy(packet, head)
	if nameLen > 0 {
		if n, err := io.ReadFull(r, packet[FixedHeaderLen:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: name wants %d bytes, got %d", ErrTruncated, nameLen, n)
			}
			return nil, err
		}
	}
	return packet, nil
}

// Discard reads and drops whatever the peer still has in flight, up to
// MaxMessageBytes, stopping at end-of-stream. Closing a socket with unread
// receive data resets the connection and can lose a response not yet
// delivered, so writers drain before closing.
func Discard(r io.Reader, limits Limits) (int64, error) {
	max := limits.MaxMessageBytes
	if max <= 0 {
		max = DefaultLimits().MaxMessageBytes
	}
	return io.Copy(io.Discard, io.LimitReader(r, max))
}

type closeWriter interface {
	CloseWrite() error
}

// WriteMessage writes one complete packet and then half-closes w when the
// underlying connection supports it, signalling end-of-message to the peer.
func WriteMessage(w io.Writer, packet []byte) error {
	for len(packet) > 0 {
		n, err := w.Write(packet)
		if err != nil {
			return err
		}
		packet = packet[n:]
	}
	if cw, ok := w.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}
