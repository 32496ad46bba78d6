package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/runloop"
	"github.com/astrachat/starwallet/wallet"
)

func newPayCmd() *cobra.Command {
	var (
		kind string
		peer string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "pay <invoice-slug>",
		Short: "Pay an invoice through the wallet's payment flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ledger.InvoiceTarget{
				Kind:   ledger.InvoiceKind(kind),
				Slug:   args[0],
				PeerID: peer,
			}

			client, err := newLedgerClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			loop := runloop.New()
			loop.Start(ctx)
			defer func() {
				loop.Stop()
				loop.Wait()
			}()

			gw := wallet.NewHTTPGateway(ctx, client, loop, nil)
			w := wallet.New(wallet.Config{
				Gateway: gw,
				Loop:    loop,
				OnNotice: func(text string) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Notice:", text)
				},
			})

			stdin := bufio.NewReader(cmd.InOrStdin())
			done := make(chan wallet.Outcome, 1)

			hooks := wallet.Hooks{
				OnConfirmationNeeded: func(form *ledger.PaymentForm, confirm, dismiss func()) {
					if yes {
						confirm()
						return
					}
					// Prompt off-loop, then marshal the answer back.
					go func() {
						fmt.Fprintf(cmd.OutOrStdout(), "Pay %d Stars for %q? [y/N] ", form.TotalStars(), form.Title)
						line, _ := stdin.ReadString('\n')
						answer := strings.TrimSpace(strings.ToLower(line)) == "y"
						loop.Post(func() {
							if answer {
								confirm()
							} else {
								dismiss()
							}
						})
					}()
				},
				OnTopupNeeded: func(shortfall int64, options []wallet.TopupOption, _, dismiss func(), _ func(error)) {
					fmt.Fprintf(cmd.OutOrStdout(), "Balance is %d Stars short. Top-up tiers:\n", shortfall)
					for _, opt := range options {
						fmt.Fprintf(cmd.OutOrStdout(), " - %s: %d Stars\n", opt.ID, opt.Stars)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Top up from the app, then retry.")
					dismiss()
				},
				OnTerminal: func(o wallet.Outcome) {
					done <- o
				},
			}

			loop.Post(func() { w.Payments.Run(target, hooks) })

			outcome := <-done
			switch outcome.State {
			case wallet.StateSettled:
				fmt.Fprintf(cmd.OutOrStdout(), "Settled: transaction %s\n", outcome.TransactionID)
				return nil
			case wallet.StateCancelled:
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			default:
				return fmt.Errorf("payment failed: %w", outcome.Err)
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(ledger.InvoiceMessage), "invoice kind: topup|message|gift_upgrade|gift_transfer")
	cmd.Flags().StringVar(&peer, "peer", "", "recipient peer id (gift transfers)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm without prompting")
	return cmd
}
