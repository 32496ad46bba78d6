package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current Stars balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newLedgerClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			status, err := client.GetStarsStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch balance: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Balance: %d Stars\n", status.Balance)
			if len(status.History) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Recent activity:\n")
				for _, txn := range status.History {
					printTransaction(cmd, txn)
				}
			}
			if len(status.Subscriptions) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Subscriptions:\n")
				for _, sub := range status.Subscriptions {
					state := "active"
					if sub.Cancelled {
						state = "cancelled"
					}
					fmt.Fprintf(cmd.OutOrStdout(), " - %s: %d Stars, %s, until %s\n",
						sub.PeerTitle, sub.Amount, state, sub.UntilDate.Format("2006-01-02"))
				}
			}
			return nil
		},
	}
}
