package wallet

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/clients/ledgerd"
	"github.com/astrachat/starwallet/logging"
	"github.com/astrachat/starwallet/runloop"
)

// Gateway is the remote ledger as the wallet core sees it. Every callback is
// delivered on the wallet's run loop, so implementations must marshal results
// there themselves; the core never blocks on a gateway call.
type Gateway interface {
	GetStarsStatus(cb func(*ledger.StatusResponse, error))
	GetTransactions(direction ledger.Direction, cursor string, cb func(*ledger.TransactionPage, error))
	GetSubscriptions(cursor string, cb func(*ledger.SubscriptionPage, error))
	GetTopupOptions(cb func([]ledger.TopupOption, error))
	ResolveStorePrices(productIDs []string, cb func(map[string]ledger.StorePrice, error))
	GetPaymentForm(target ledger.InvoiceTarget, cb func(*ledger.PaymentForm, error))
	SubmitPayment(formID string, target ledger.InvoiceTarget, cb func(*ledger.SettlementResult, error))

	// PurchasesSupported reports whether this account may buy Stars at all.
	// Synchronous; implementations answer from a cached capability flag.
	PurchasesSupported() bool
}

// HTTPGateway adapts the synchronous ledgerd client to the async Gateway
// contract: each call runs on its own goroutine and the callback is posted
// back to the run loop.
type HTTPGateway struct {
	client *ledgerd.Client
	loop   runloop.Poster
	logger logging.Logger

	ctx context.Context

	// purchasesSupported defaults to true and is corrected by the
	// capability probe; failing closed would block paying users on a
	// transient capability-endpoint error.
	purchasesSupported atomic.Bool
}

// NewHTTPGateway wraps a ledgerd client. ctx bounds all requests issued by
// the gateway; cancel it on session teardown. The capability flag is probed
// once in the background.
func NewHTTPGateway(ctx context.Context, client *ledgerd.Client, loop runloop.Poster, logger logging.Logger) *HTTPGateway {
	if logger == nil {
		logger = logging.Nop()
	}
	g := &HTTPGateway{
		client: client,
		loop:   loop,
		logger: logger,
		ctx:    ctx,
	}
	g.purchasesSupported.Store(true)
	go g.probeCapabilities()
	return g
}

func (g *HTTPGateway) probeCapabilities() {
	caps, err := g.client.GetCapabilities(g.ctx)
	if err != nil {
		g.logger.WithError(err).Warn("capability probe failed, assuming purchases supported")
		return
	}
	g.purchasesSupported.Store(caps.PurchasesSupported)
}

// PurchasesSupported returns the last probed capability flag.
func (g *HTTPGateway) PurchasesSupported() bool {
	return g.purchasesSupported.Load()
}

func (g *HTTPGateway) GetStarsStatus(cb func(*ledger.StatusResponse, error)) {
	go func() {
		status, err := g.client.GetStarsStatus(g.ctx)
		g.loop.Post(func() { cb(status, err) })
	}()
}

func (g *HTTPGateway) GetTransactions(direction ledger.Direction, cursor string, cb func(*ledger.TransactionPage, error)) {
	go func() {
		page, err := g.client.GetTransactions(g.ctx, direction, cursor, 0)
		g.loop.Post(func() { cb(page, err) })
	}()
}

func (g *HTTPGateway) GetSubscriptions(cursor string, cb func(*ledger.SubscriptionPage, error)) {
	go func() {
		page, err := g.client.GetSubscriptions(g.ctx, cursor)
		g.loop.Post(func() { cb(page, err) })
	}()
}

func (g *HTTPGateway) GetTopupOptions(cb func([]ledger.TopupOption, error)) {
	go func() {
		options, err := g.client.GetTopupOptions(g.ctx)
		g.loop.Post(func() { cb(options, err) })
	}()
}

func (g *HTTPGateway) ResolveStorePrices(productIDs []string, cb func(map[string]ledger.StorePrice, error)) {
	go func() {
		prices, err := g.client.ResolveStorePrices(g.ctx, productIDs)
		g.loop.Post(func() { cb(prices, err) })
	}()
}

func (g *HTTPGateway) GetPaymentForm(target ledger.InvoiceTarget, cb func(*ledger.PaymentForm, error)) {
	go func() {
		form, err := g.client.GetPaymentForm(g.ctx, target)
		g.loop.Post(func() { cb(form, err) })
	}()
}

func (g *HTTPGateway) SubmitPayment(formID string, target ledger.InvoiceTarget, cb func(*ledger.SettlementResult, error)) {
	go func() {
		result, err := g.client.SubmitPayment(g.ctx, &ledger.SubmitPaymentRequest{
			FormID:         formID,
			Invoice:        target,
			IdempotencyKey: uuid.NewString(),
		})
		g.loop.Post(func() { cb(result, err) })
	}()
}
