// Package wallet is the client-side controller for the Stars in-app
// currency: a cached balance with single-flight refresh, three paginated
// transaction views over one feed, a load-once top-up catalog with
// best-effort store prices, a recurring-charge list, and a payment
// orchestration state machine.
//
// Everything in this package is confined to the wallet's run loop. Public
// entry points must be called on it, gateway implementations deliver
// callbacks on it, and no component takes a lock.
package wallet

import (
	"time"

	"github.com/astrachat/starwallet/logging"
	"github.com/astrachat/starwallet/monitoring"
	"github.com/astrachat/starwallet/runloop"
)

// Config assembles a wallet. Gateway and Loop are required.
type Config struct {
	AccountID string
	Gateway   Gateway
	Loop      runloop.Poster

	Logger  logging.Logger
	Metrics *monitoring.Metrics

	// FreshnessWindow overrides how long a balance read counts as fresh.
	// Zero means DefaultFreshnessWindow.
	FreshnessWindow time.Duration

	// OnNotice receives user-facing notices for best-effort failures that
	// should be shown but not acted on (store-price enrichment, mostly).
	OnNotice func(text string)
}

// Wallet is the per-account container. One instance per authenticated
// session; create on session start, drop on session end.
type Wallet struct {
	accountID string
	loop      runloop.Poster

	Balance       *BalanceCache
	Transactions  *TransactionLedger
	Subscriptions *SubscriptionList
	Topup         *TopupCatalog
	Payments      *PaymentOrchestrator
}

// New builds a wallet and wires its components together. It performs no I/O;
// nothing is fetched until the first read or an explicit refresh.
func New(cfg Config) *Wallet {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.AccountID != "" {
		logger = logger.WithField("account", cfg.AccountID)
	}

	balance := newBalanceCache(cfg.Gateway, logger, cfg.Metrics, cfg.FreshnessWindow)
	txns := newTransactionLedger(cfg.Gateway, logger, cfg.Metrics)
	subs := newSubscriptionList(cfg.Gateway, logger)
	topup := newTopupCatalog(cfg.Gateway, logger, cfg.OnNotice)

	// Cross-wiring: ledger pages feed the balance heartbeat; the status
	// response seeds the ledger and subscription list.
	txns.balance = balance
	subs.balance = balance
	balance.ledger = txns
	balance.subscriptions = subs

	return &Wallet{
		accountID:     cfg.AccountID,
		loop:          cfg.Loop,
		Balance:       balance,
		Transactions:  txns,
		Subscriptions: subs,
		Topup:         topup,
		Payments:      newPaymentOrchestrator(cfg.Gateway, balance, txns, subs, topup, logger, cfg.Metrics),
	}
}

// AccountID returns the account this wallet is scoped to.
func (w *Wallet) AccountID() string { return w.accountID }

// Post schedules fn on the wallet's run loop. Convenience for callers living
// off-loop.
func (w *Wallet) Post(fn func()) { w.loop.Post(fn) }
