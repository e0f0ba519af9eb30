package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/tenant-session/internal/auth"
	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/repository"
)

var (
	accountEmail    string
	accountName     string
	accountPassword string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage local sign-in accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a sign-in account",
	Long:  `Creates an active account in the users table with a bcrypt password hash.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(accountEmail)
		if email == "" || accountPassword == "" {
			return fmt.Errorf("--email and --password are required")
		}

		hash, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost).Hash(accountPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		ctx := cmd.Context()
		pg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		account := &domain.Account{
			Email:        email,
			DisplayName:  strings.TrimSpace(accountName),
			PasswordHash: hash,
			Status:       domain.AccountStatusActive,
		}
		if err := repository.NewAccountRepository(pg.Pool).Create(ctx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		return writeYAML(cmd.OutOrStdout(), map[string]string{
			"id":    account.ID,
			"email": account.Email,
		})
	},
}

func init() {
	accountCreateCmd.Flags().StringVar(&accountEmail, "email", "", "Account email")
	accountCreateCmd.Flags().StringVar(&accountName, "name", "", "Display name")
	accountCreateCmd.Flags().StringVar(&accountPassword, "password", "", "Initial password")
	accountCmd.AddCommand(accountCreateCmd)
}
