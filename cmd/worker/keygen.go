package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wpdrift/worker/internal/config"
	jwtx "github.com/wpdrift/worker/internal/jwt"
	"github.com/wpdrift/worker/internal/store/pg"
)

var (
	flagKeyBits   int
	flagKeyOut    string
	flagKeyRotate bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Genera un par RSA para firmar tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := jwtx.GenerateRSA(flagKeyBits)
		if err != nil {
			return err
		}

		if flagKeyRotate {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != "postgres" {
				return fmt.Errorf("--rotate requiere store.driver=postgres (driver actual: %s)", cfg.Store.Driver)
			}
			pool, err := pg.Connect(cmd.Context(), cfg.Store.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pg.New(pool).Keys.RotateKey(cmd.Context(), priv); err != nil {
				return err
			}
			cmd.Println("clave de firma rotada; los tokens viejos dejan de validar")
			return nil
		}

		privPEM := jwtx.EncodePrivatePEM(priv)
		if flagKeyOut == "" {
			cmd.Print(string(privPEM))
		} else {
			if err := os.WriteFile(flagKeyOut, privPEM, 0o600); err != nil {
				return fmt.Errorf("escribiendo %s: %w", flagKeyOut, err)
			}
			cmd.Printf("clave privada escrita en %s\n", flagKeyOut)
		}

		pubPEM, err := jwtx.EncodePublicPEM(&priv.PublicKey)
		if err != nil {
			return err
		}
		cmd.Print(string(pubPEM))
		return nil
	},
}

func init() {
	keygenCmd.Flags().IntVar(&flagKeyBits, "bits", 2048, "tamaño de la clave (mínimo 2048)")
	keygenCmd.Flags().StringVarP(&flagKeyOut, "out", "o", "", "archivo destino del PEM privado (default: stdout)")
	keygenCmd.Flags().BoolVar(&flagKeyRotate, "rotate", false, "rota la clave activa en la tabla oauth_signing_keys")
}
