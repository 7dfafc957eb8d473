package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danmuck/imagedb/internal/config"
	"github.com/danmuck/imagedb/internal/logging"
	"github.com/danmuck/imagedb/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func defaultPath(kind string) (string, error) {
	switch kind {
	case config.KindServer, "imagedb":
		return "cmd/imagedb/config.toml", nil
	case config.KindClient, "getimage":
		return "cmd/getimage/config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		kind     string
		output   string
		validate bool
		input    string
		force    bool
	)
	cmd := &cobra.Command{
		Use:           "configgen",
		Short:         "Write or validate imagedb/getimage config templates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			observability.InitLogger("configgen", logging.DefaultConfig(logging.ProfileRuntime))

			if validate {
				path := input
				if path == "" {
					p, err := defaultPath(kind)
					if err != nil {
						return err
					}
					path = p
				}
				if err := config.Check(path, kind); err != nil {
					return err
				}
				log.Info().Str("kind", kind).Str("path", path).Msg("config validated")
				return nil
			}

			target := output
			if target == "" {
				p, err := defaultPath(kind)
				if err != nil {
					return err
				}
				target = p
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			log.Info().Str("kind", kind).Str("path", target).Msg("config template written")
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", config.KindServer, "config kind: server|client")
	cmd.Flags().StringVar(&output, "output", "", "output path for config template")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate an existing config file")
	cmd.Flags().StringVar(&input, "input", "", "config path for validation (defaults to per-kind cmd path)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}
