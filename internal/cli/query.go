package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/server"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var forceReview bool

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
	queryCmd.Flags().BoolVar(&forceReview, "review", false, "run the advisory reviewer even for simple statements")
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run one SQL statement through admission, review and execution",
	Long:  "Prints the result envelope as JSON. Exits 2 when the statement is blocked and 1 on a warehouse error.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := audit.WithTurn(cmd.Context(), "cli-"+uuid.NewString())
		return withApp(ctx, func(app *server.App) error {
			env := app.Orchestrator.Submit(ctx, args[0], models.SubmitOptions{ForceReview: forceReview, Source: "cli"})
			return printEnvelope(cmd.OutOrStdout(), env, env)
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with the configured generator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := audit.WithTurn(cmd.Context(), "cli-"+uuid.NewString())
		return withApp(ctx, func(app *server.App) error {
			res := app.Orchestrator.HandleTurn(ctx, args[0])
			return printEnvelope(cmd.OutOrStdout(), res.Envelope, map[string]any{
				"turn_id":       res.TurnID,
				"generated_sql": res.SQL,
				"explanation":   res.Explanation,
				"result":        res.Envelope,
			})
		})
	},
}

func withApp(ctx context.Context, fn func(*server.App) error) error {
	app, err := server.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printEnvelope(w io.Writer, env *models.Envelope, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))

	switch env.Status {
	case models.StatusBlocked:
		return &exitError{code: 2, msg: "statement blocked: " + env.Keyword}
	case models.StatusError:
		return &exitError{code: 1, msg: env.Message}
	}
	return nil
}
