package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/imagedb/internal/client"
	"github.com/danmuck/imagedb/internal/observability"
	"github.com/danmuck/imagedb/internal/protocol"
	"github.com/danmuck/imagedb/internal/protocol/session"
	"github.com/danmuck/imagedb/internal/tools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "getimage: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		server     string
		image      string
		version    uint8
		outputDir  string
		open       bool
	)
	cmd := &cobra.Command{
		Use:   "getimage -s <host:port> -q <image> -v <version>",
		Short: "Fetch one image from an imagedb server",
		Example: `  getimage -s 127.0.0.1:3000 -q cat.png -v 9
  getimage -s 127.0.0.1:3000 -q holiday.jpg -v 9 --open`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRuntimeConfig(configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if err := applyEnv(&cfg); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("server") {
				cfg.Client.Address = server
			}
			if flags.Changed("version") {
				cfg.Client.Version = version
			}
			if flags.Changed("out") {
				cfg.Client.OutputDir = outputDir
			}
			if flags.Changed("open") {
				cfg.Open = open
			}
			if strings.TrimSpace(image) == "" {
				return errors.New("an image name is required (-q)")
			}
			return run(cmd.Context(), cfg, image)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to getimage config.toml")
	cmd.Flags().StringVarP(&server, "server", "s", "", "imagedb server, host:port")
	cmd.Flags().StringVarP(&image, "query", "q", "", "image file name, e.g. cat.png")
	cmd.Flags().Uint8VarP(&version, "version", "v", protocol.SupportedVersion, "ITP version")
	cmd.Flags().StringVarP(&outputDir, "out", "o", "", "directory the image is saved to")
	cmd.Flags().BoolVar(&open, "open", false, "open the saved image in the default viewer")
	return cmd
}

func run(ctx context.Context, cfg runtimeConfig, image string) error {
	observability.InitLogger("getimage", cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := session.NewGenerator()
	go func() { _ = gen.Run(ctx) }()

	res, err := client.New(cfg.Client, gen).Fetch(ctx, image)
	if err != nil {
		return err
	}
	log.Info().
		Str("image", image).
		Str("response_type", res.Response.ResponseType.String()).
		Uint16("seq", res.Response.SequenceNumber).
		Uint32("ts", res.Response.Timestamp).
		Str("saved", res.SavedPath).
		Msg("Disconnected from the server")

	if cfg.Open && res.SavedPath != "" {
		if err := tools.NewViewer().Open(ctx, res.SavedPath); err != nil {
			log.Warn().Err(err).Str("path", res.SavedPath).Msg("getimage.open failed")
		}
	}
	return nil
}
