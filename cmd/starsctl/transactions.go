package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/pagination"
)

func newTransactionsCmd() *cobra.Command {
	var (
		direction string
		limit     int
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List ledger transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ledger.Direction(direction)
			switch dir {
			case ledger.DirectionAll, ledger.DirectionIncoming, ledger.DirectionOutgoing:
			default:
				return fmt.Errorf("invalid direction %q (all|incoming|outgoing)", direction)
			}

			client, err := newLedgerClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			cursor := ""
			for {
				page, err := client.GetTransactions(ctx, dir, cursor, limit)
				if err != nil {
					return fmt.Errorf("failed to fetch transactions: %w", err)
				}
				for _, txn := range page.Transactions {
					printTransaction(cmd, txn)
				}
				if !all || !page.HasMore {
					break
				}
				// A malformed continuation cursor would loop the feed from the
				// start; bail out instead of re-sending it.
				if _, err := pagination.Decode(page.NextCursor); err != nil {
					return fmt.Errorf("backend returned invalid continuation cursor: %w", err)
				}
				cursor = page.NextCursor
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "all", "feed to list: all|incoming|outgoing")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().BoolVar(&all, "all", false, "page through the entire feed")
	return cmd
}

func printTransaction(cmd *cobra.Command, txn ledger.Transaction) {
	sign := "-"
	if txn.Credit() {
		sign = "+"
	}
	amount := txn.Amount
	if amount < 0 {
		amount = -amount
	}
	label := txn.Title
	if label == "" {
		label = txn.Counterparty.Title
	}
	suffix := ""
	if txn.Refunded {
		suffix = " (refunded)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), " %s %s%d  %s  %s%s\n",
		txn.Date.Format("2006-01-02 15:04"), sign, amount, txn.ID, label, suffix)
}
