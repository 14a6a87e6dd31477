package cli

import (
	"encoding/json"
	"fmt"

	"github.com/cortexai/querygate/internal/handler"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{"config": "none"},
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := json.MarshalIndent(map[string]string{
			"name":    "querygate",
			"version": handler.Version,
		}, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	},
}
