package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/auth"
	"github.com/straja-ai/aidetect/internal/bootstrap"
	"github.com/straja-ai/aidetect/internal/redact"
	"github.com/straja-ai/aidetect/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			override(&cfg.Server.Addr, addr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("load model %s: %w", redact.URL(cfg.Model.Path), err)
			}
			defer rt.Close()

			logger.Info("model loaded",
				zap.String("model", redact.URL(cfg.Model.Path)),
				zap.Int("token_ids_index", rt.Analyzer.Layout().TokenIDs),
				zap.Int("seq_len", rt.Analyzer.Layout().SeqLen),
				zap.Bool("telemetry", rt.Metrics.Enabled),
				zap.Int("api_keys", len(cfg.Server.APIKeys)),
			)

			keys, err := auth.NewFromConfig(cfg.Server.APIKeys)
			if err != nil {
				return fmt.Errorf("api keys: %w", err)
			}
			srv := server.New(rt.Analyzer, rt.Store, cfg.Server, logger, server.WithAuth(keys))
			if err := srv.Start(ctx, cfg.Server.Addr); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}
