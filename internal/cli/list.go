package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dishm/internal/testcases"
)

// TestCaseInfo describes one registered test case.
type TestCaseInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List registered test cases",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := testcases.All()
			infos := make([]TestCaseInfo, 0, len(reg))
			for _, name := range reg.Names() {
				tc, _ := reg.Lookup(name)
				infos = append(infos, TestCaseInfo{Name: name, Description: tc.Description()})
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: infos})
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", info.Name, info.Description)
			}
			return nil
		},
	}
}
