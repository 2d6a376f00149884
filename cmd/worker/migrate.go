package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wpdrift/worker/internal/config"
	"github.com/wpdrift/worker/internal/store/pg"
	"github.com/wpdrift/worker/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica el esquema de Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if cfg.Store.Driver != "postgres" {
			return fmt.Errorf("migrate requiere store.driver=postgres (driver actual: %s)", cfg.Store.Driver)
		}

		pool, err := pg.Connect(cmd.Context(), cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := migrations.FS.ReadDir("postgres")
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			raw, err := migrations.FS.ReadFile("postgres/" + e.Name())
			if err != nil {
				return err
			}
			if _, err := pool.Exec(cmd.Context(), string(raw)); err != nil {
				return fmt.Errorf("aplicando %s: %w", e.Name(), err)
			}
			cmd.Printf("aplicada %s\n", e.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
