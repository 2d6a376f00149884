package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wpdrift/worker/internal/config"
	"github.com/wpdrift/worker/internal/oauth2"
	tokens "github.com/wpdrift/worker/internal/security/token"
	"github.com/wpdrift/worker/internal/store/pg"
)

var (
	flagClientID     string
	flagClientSecret string
	flagRedirectURIs []string
	flagGrantTypes   []string
	flagClientScope  string
	flagClientUser   string
	flagClientPublic bool
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Administra clients registrados",
}

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Registra un client (requiere store.driver=postgres)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if cfg.Store.Driver != "postgres" {
			return fmt.Errorf("client add requiere store.driver=postgres (driver actual: %s)", cfg.Store.Driver)
		}

		pool, err := pg.Connect(cmd.Context(), cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		id := flagClientID
		if id == "" {
			id = uuid.NewString()
		}
		secret := flagClientSecret
		if secret == "" && !flagClientPublic {
			secret, err = tokens.GenerateOpaqueToken(32)
			if err != nil {
				return err
			}
		}

		stores := pg.New(pool)
		err = stores.Clients.CreateClient(cmd.Context(), &oauth2.Client{
			ID:           id,
			GrantTypes:   flagGrantTypes,
			RedirectURIs: flagRedirectURIs,
			UserID:       flagClientUser,
			Scope:        flagClientScope,
			Public:       flagClientPublic,
		}, secret)
		if errors.Is(err, oauth2.ErrConflict) {
			return fmt.Errorf("el client_id %s ya está registrado", id)
		}
		if err != nil {
			return err
		}

		cmd.Printf("client_id: %s\n", id)
		if secret != "" {
			// Se muestra una sola vez: en la base queda solo el hash.
			cmd.Printf("client_secret: %s\n", secret)
		}
		return nil
	},
}

var clientRemoveCmd = &cobra.Command{
	Use:   "remove <client_id>",
	Short: "Elimina un client registrado",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if cfg.Store.Driver != "postgres" {
			return fmt.Errorf("client remove requiere store.driver=postgres (driver actual: %s)", cfg.Store.Driver)
		}

		pool, err := pg.Connect(cmd.Context(), cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.New(pool).Clients.DeleteClient(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("client %s eliminado\n", args[0])
		return nil
	},
}

func init() {
	clientAddCmd.Flags().StringVar(&flagClientID, "id", "", "client_id (default: uuid)")
	clientAddCmd.Flags().StringVar(&flagClientSecret, "secret", "", "secret (default: generado)")
	clientAddCmd.Flags().StringSliceVar(&flagRedirectURIs, "redirect-uri", nil, "redirect URIs permitidas (repetible)")
	clientAddCmd.Flags().StringSliceVar(&flagGrantTypes, "grant-type", nil, "grants permitidos (vacío = todos)")
	clientAddCmd.Flags().StringVar(&flagClientScope, "scope", "", "scopes permitidos, space-separated (vacío = sin restricción)")
	clientAddCmd.Flags().StringVar(&flagClientUser, "user", "", "usuario dueño del client")
	clientAddCmd.Flags().BoolVar(&flagClientPublic, "public", false, "client sin secret")

	clientCmd.AddCommand(clientAddCmd)
	clientCmd.AddCommand(clientRemoveCmd)
}
