package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joilabs/mnemo/db"
	"github.com/joilabs/mnemo/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		newLogger()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return db.Migrate(cfg.PostgresURL())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
