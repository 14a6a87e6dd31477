package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cortexai/querygate/internal/handler"
	querymcp "github.com/cortexai/querygate/internal/mcp"
	"github.com/cortexai/querygate/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool server on stdio",
	Long:  "Serves list_tables, get_schema, review_sql, execute_sql and ask over the Model Context Protocol.\nEvery call goes through admission and the audit pipeline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := server.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		log.Info().Msg("querygate MCP server running on stdio")
		err = querymcp.New(app.Orchestrator, app.Policy, handler.Version).Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}
