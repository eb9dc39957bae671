package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xtrntr/farmduel/internal/config"
	"github.com/xtrntr/farmduel/internal/db"
	"github.com/xtrntr/farmduel/migrations"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the trade ledger tables",
		Long: `Apply the ledger schema to database.url (or DATABASE_URL). The
scripts are idempotent; the server applies them on start as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database.url is not set")
			}

			ctx := cmd.Context()
			database, err := db.NewDB(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer database.Close(ctx)

			scripts, err := migrations.Scripts()
			if err != nil {
				return fmt.Errorf("failed to read migrations: %w", err)
			}
			for _, script := range scripts {
				if err := database.Migrate(ctx, script); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(scripts))
			return nil
		},
	}
}
