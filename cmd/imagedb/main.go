package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/imagedb/internal/imagestore"
	"github.com/danmuck/imagedb/internal/observability"
	"github.com/danmuck/imagedb/internal/protocol/session"
	"github.com/danmuck/imagedb/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "imagedb: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		listen     string
		admin      string
		images     string
		maxConns   int
	)
	cmd := &cobra.Command{
		Use:   "imagedb",
		Short: "Serve images to ITP clients",
		Long: `imagedb answers ITP image queries over TCP, one request per connection.

Images are read from a local directory (images/ by default) or an S3 bucket.
Configuration is layered: config.toml, then .env and ITP_* environment
variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := loadRuntimeConfig(configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if err := applyEnv(&cfg); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Server.ListenAddr = listen
			}
			if flags.Changed("admin") {
				cfg.Server.AdminAddr = admin
			}
			if flags.Changed("images") {
				cfg.Store.Root = images
			}
			if flags.Changed("max-connections") {
				cfg.Server.MaxConnections = maxConns
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to imagedb config.toml")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before ITP_* variables")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "ITP listen address, host:port")
	cmd.Flags().StringVar(&admin, "admin", "", "admin HTTP address for /health and /metrics (empty disables)")
	cmd.Flags().StringVar(&images, "images", "", "image directory for the fs backend")
	cmd.Flags().IntVar(&maxConns, "max-connections", 0, "answer Busy above this many active connections (0 disables)")
	return cmd
}

func run(ctx context.Context, cfg runtimeConfig) error {
	observability.InitLogger("imagedb", cfg.Log)
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cached, err := imagestore.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	gen := session.NewGenerator(session.WithInterval(cfg.TickInterval))
	srv := server.New(cfg.Server, store, gen)
	if cached != nil {
		srv.AddTask(cached.Watch)
	}
	log.Info().
		Str("node", cfg.Server.NodeID).
		Str("backend", cfg.Store.Backend).
		Str("root", cfg.Store.Root).
		Uint32("ts", gen.CurrentTimestamp()).
		Msg("imagedb starting")
	return srv.Run(ctx)
}
