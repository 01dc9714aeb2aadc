package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"perpmm/internal/config"
	"perpmm/internal/venue"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check configuration, credentials, venue connectivity, and market listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfTest()
		},
	}
}

func runSelfTest() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: FAIL (%w)", err)
	}
	fmt.Println("config: OK")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation: FAIL (%w)", err)
	}
	fmt.Println("validation: OK")

	logger := newLogger(loggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.Wallet.PrivateKeyBase58 == "" {
		return fmt.Errorf("credentials: FAIL (PRIVATE_KEY_BASE58 not set)")
	}
	fmt.Println("credentials: OK")

	v, err := venue.New(*cfg, logger)
	if err != nil {
		return fmt.Errorf("venue adapter: FAIL (%w)", err)
	}
	fmt.Println("venue adapter: OK")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	markets, err := v.GetAllMarkets(ctx)
	if err != nil {
		return fmt.Errorf("venue connectivity: FAIL (%w)", err)
	}
	fmt.Printf("venue connectivity: OK (%d markets listed)\n", len(markets))

	return nil
}
