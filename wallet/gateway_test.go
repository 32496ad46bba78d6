package wallet

import (
	"testing"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/runloop"
)

// fakeGateway records every call and lets the test resolve callbacks
// explicitly, so in-flight windows are scripted rather than timed. Combined
// with runloop.Immediate this makes every test fully deterministic.
type fakeGateway struct {
	purchases bool

	statusCalls  []func(*ledger.StatusResponse, error)
	txnCalls     []txnCall
	subsCalls    []func(*ledger.SubscriptionPage, error)
	optionsCalls []func([]ledger.TopupOption, error)
	priceCalls   []priceCall
	formCalls    []formCall
	submitCalls  []submitCall
}

type txnCall struct {
	direction ledger.Direction
	cursor    string
	cb        func(*ledger.TransactionPage, error)
}

type priceCall struct {
	ids []string
	cb  func(map[string]ledger.StorePrice, error)
}

type formCall struct {
	target ledger.InvoiceTarget
	cb     func(*ledger.PaymentForm, error)
}

type submitCall struct {
	formID string
	target ledger.InvoiceTarget
	cb     func(*ledger.SettlementResult, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{purchases: true}
}

func (g *fakeGateway) GetStarsStatus(cb func(*ledger.StatusResponse, error)) {
	g.statusCalls = append(g.statusCalls, cb)
}

func (g *fakeGateway) GetTransactions(direction ledger.Direction, cursor string, cb func(*ledger.TransactionPage, error)) {
	g.txnCalls = append(g.txnCalls, txnCall{direction: direction, cursor: cursor, cb: cb})
}

func (g *fakeGateway) GetSubscriptions(cursor string, cb func(*ledger.SubscriptionPage, error)) {
	g.subsCalls = append(g.subsCalls, cb)
}

func (g *fakeGateway) GetTopupOptions(cb func([]ledger.TopupOption, error)) {
	g.optionsCalls = append(g.optionsCalls, cb)
}

func (g *fakeGateway) ResolveStorePrices(ids []string, cb func(map[string]ledger.StorePrice, error)) {
	g.priceCalls = append(g.priceCalls, priceCall{ids: ids, cb: cb})
}

func (g *fakeGateway) GetPaymentForm(target ledger.InvoiceTarget, cb func(*ledger.PaymentForm, error)) {
	g.formCalls = append(g.formCalls, formCall{target: target, cb: cb})
}

func (g *fakeGateway) SubmitPayment(formID string, target ledger.InvoiceTarget, cb func(*ledger.SettlementResult, error)) {
	g.submitCalls = append(g.submitCalls, submitCall{formID: formID, target: target, cb: cb})
}

func (g *fakeGateway) PurchasesSupported() bool { return g.purchases }

func newTestWallet(t *testing.T) (*Wallet, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	w := New(Config{
		AccountID: "acct-test",
		Gateway:   gw,
		Loop:      runloop.Immediate{},
	})
	return w, gw
}
