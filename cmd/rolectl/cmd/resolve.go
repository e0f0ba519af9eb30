package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/repository"
	"github.com/spec-kit/tenant-session/internal/resolver"
)

var (
	resolveEmail string
	resolveName  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <principal-id>",
	Short: "Resolve a principal to its tenant identity",
	Long: `Runs the role probes for a principal in priority order and prints the
resulting identity together with its landing path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		principalID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid principal id %q: %w", args[0], err)
		}

		ctx := cmd.Context()
		pg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		var opts []resolver.Option
		if cfg.Roles.UnassignedFallback != "" {
			opts = append(opts, resolver.WithFallbackRole(cfg.Roles.UnassignedFallback))
		}
		roles := resolver.NewDefault(logger.Named("resolver"), repository.RoleProbes(pg.Pool), opts...)

		user, err := roles.Resolve(ctx, domain.Principal{
			ID:          principalID.String(),
			Email:       resolveEmail,
			DisplayName: resolveName,
		})
		if err != nil {
			return err
		}

		redirect, _ := cfg.Roles.Redirects().PathFor(user.Role)
		return writeYAML(cmd.OutOrStdout(), resolution{User: user, RedirectTo: redirect})
	},
}

type resolution struct {
	User       *domain.AuthUser `yaml:"user"`
	RedirectTo string           `yaml:"redirect_to,omitempty"`
}

func init() {
	resolveCmd.Flags().StringVar(&resolveEmail, "email", "", "Principal email")
	resolveCmd.Flags().StringVar(&resolveName, "name", "", "Principal display name")
}
