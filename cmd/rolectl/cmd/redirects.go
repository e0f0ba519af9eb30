package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/tenant-session/internal/domain"
)

var redirectsCmd = &cobra.Command{
	Use:   "redirects",
	Short: "Print the role landing table",
	Long:  `Prints the landing path for every role after ROLE_REDIRECTS overrides are applied.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table := cfg.Roles.Redirects()
		out := make(map[string]string, len(table))
		for role, path := range table {
			out[string(role)] = path
		}
		if cfg.Roles.UnassignedFallback != "" {
			out["fallback"] = string(cfg.Roles.UnassignedFallback)
		} else {
			out["fallback"] = string(domain.RoleUnassigned)
		}
		return writeYAML(cmd.OutOrStdout(), out)
	},
}
