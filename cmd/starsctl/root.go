package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/astrachat/starwallet/clients/ledgerd"
	"github.com/astrachat/starwallet/config"
	"github.com/astrachat/starwallet/logging"
)

var (
	cfgFile      string
	backendURL   string
	sessionToken string
	verbose      bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "starsctl",
		Short:         "starsctl — Stars wallet CLI",
		Long:          "starsctl — inspect balances, transactions and top-up tiers, and run payments against a ledgerd backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.starsctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "ledgerd base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sessionToken, "token", "", "session token (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	cobra.OnInitialize(func() { config.LoadEnv(nil) })

	rootCmd.AddCommand(newBalanceCmd())
	rootCmd.AddCommand(newTransactionsCmd())
	rootCmd.AddCommand(newTopupCmd())
	rootCmd.AddCommand(newPayCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newLedgerClient assembles a ledgerd client from flags, config file and
// environment, in that order of precedence.
func newLedgerClient() (*ledgerd.Client, error) {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if sessionToken != "" {
		cfg.SessionToken = sessionToken
	}

	logger := logging.NewLogger()
	if verbose {
		logger.SetLevel(logging.DebugLevel)
	}

	return ledgerd.NewClient(ledgerd.Config{
		BaseURL:      cfg.BackendURL,
		SessionToken: cfg.SessionToken,
		Timeout:      30 * time.Second,
		Logger:       logger,
	}), nil
}
