package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/config"
	"nrgchamp/homectl/internal/statestore"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply storage migrations and exit",
	Long:  `Opens the state and command stores, which run their migrations on open, then exits. Useful for provisioning a data directory before the first serve.`,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := statestore.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer db.Close()

	store := statestore.New(db)
	if _, err := command.Open(store.DB()); err != nil {
		return fmt.Errorf("open command store: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", cfg.Storage.DataDir)
	return nil
}
