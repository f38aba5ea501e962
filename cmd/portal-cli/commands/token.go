package commands

import (
	"fmt"
	"time"

	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/service"

	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	devTokenCmd.Flags().StringVar(&tokenSubject, "subject", "dev-user", "The subject of the minted token.")
	devTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "How long the minted token stays valid.")
	rootCmd.AddCommand(devTokenCmd)
	rootCmd.AddCommand(secretCmd)
}

var devTokenCmd = &cobra.Command{
	Use:   "dev-token",
	Short: "Mints a bearer token accepted by a proxy that shares this config's auth secret.",
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier, err := service.NewVerifier(readConfig().Auth, chrono.NewStandardImpl(time.UTC))
		if err != nil {
			return err
		}
		token, err := verifier.Mint(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generates a random auth secret for config.json5.",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := random.String(48)
		if err != nil {
			return err
		}
		fmt.Println(secret)
		return nil
	},
}
