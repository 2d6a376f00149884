package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagEnvFile string
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Authorization server OAuth2/OIDC",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// El .env es opcional: complementa al YAML y al entorno real.
		if flagEnvFile != "" {
			_ = godotenv.Load(flagEnvFile)
		} else {
			_ = godotenv.Load()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "ruta al YAML de configuración")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "ruta a un .env (default: ./.env si existe)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(clientCmd)
}
