package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:         "verify [path]",
	Short:       "Verify the hash chain and Before/After pairing of an audit log",
	Long:        "Walks the JSONL audit log and checks that every prev_hash matches the SHA-256 of the\nprevious line. Defaults to the configured audit_log_path. Exits 0 if valid, 1 if tampered.",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"config": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.Getenv("QUERYGATE_AUDIT_LOG")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no audit log path given")
		}

		res := audit.Verify(path)
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if !res.Valid {
			return &exitError{code: 1, msg: fmt.Sprintf("chain broken at line %d", res.ErrorLine)}
		}
		return nil
	},
}
