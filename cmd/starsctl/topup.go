package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTopupCmd() *cobra.Command {
	topupCmd := &cobra.Command{
		Use:   "topup",
		Short: "Top-up catalog commands",
	}
	topupCmd.AddCommand(newTopupOptionsCmd())
	return topupCmd
}

func newTopupOptionsCmd() *cobra.Command {
	var withStorePrices bool

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List purchasable Star tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newLedgerClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			options, err := client.GetTopupOptions(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch top-up options: %w", err)
			}

			storePrices := map[string]string{}
			if withStorePrices {
				var ids []string
				for _, opt := range options {
					if opt.StoreProduct != "" {
						ids = append(ids, opt.StoreProduct)
					}
				}
				if len(ids) > 0 {
					prices, err := client.ResolveStorePrices(ctx, ids)
					if err != nil {
						// Best effort, same as the wallet's enrichment.
						fmt.Fprintf(cmd.ErrOrStderr(), "Warning: store prices unavailable: %v\n", err)
					}
					for id, price := range prices {
						storePrices[id] = fmt.Sprintf("%d.%02d %s", price.Amount/100, price.Amount%100, price.Currency)
					}
				}
			}

			for _, opt := range options {
				line := fmt.Sprintf(" %-12s %6d Stars  %d.%02d %s", opt.ID, opt.Stars, opt.Amount/100, opt.Amount%100, opt.Currency)
				if sp, ok := storePrices[opt.StoreProduct]; ok {
					line += "  (store: " + sp + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withStorePrices, "store-prices", false, "resolve store-native prices too")
	return cmd
}
