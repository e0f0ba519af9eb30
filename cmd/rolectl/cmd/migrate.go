package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/tenant-session/internal/persistence"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		return persistence.RunMigrations(ctx, pg.Pool, migrationsDir, logger)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", persistence.DefaultMigrationsDir, "Directory of .sql migrations")
}
