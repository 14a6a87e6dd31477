package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cortexai/querygate/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := server.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		log.Info().
			Str("env", cfg.Environment).
			Str("prefix", cfg.APIPrefix).
			Bool("auth", cfg.EnableAuth).
			Int("rate_limit_per_minute", cfg.RateLimitPerMinute).
			Msg("starting querygate")
		return server.New(app).Run(ctx)
	},
}
