package wallet

import (
	"errors"
	"testing"

	"github.com/astrachat/starwallet/api/ledger"
)

func testForm(stars int64) *ledger.PaymentForm {
	return &ledger.PaymentForm{
		FormID: "f1",
		Title:  "Test invoice",
		Prices: []ledger.LabeledPrice{{Label: "Stars", Amount: stars}},
	}
}

func testTarget() ledger.InvoiceTarget {
	return ledger.InvoiceTarget{Kind: ledger.InvoiceMessage, Slug: "inv_1"}
}

// confirmAll auto-confirms and collects terminal outcomes.
type sessionProbe struct {
	outcomes []Outcome
}

func (p *sessionProbe) hooks() Hooks {
	return Hooks{
		OnConfirmationNeeded: func(_ *ledger.PaymentForm, confirm, _ func()) { confirm() },
		OnTerminal:           func(o Outcome) { p.outcomes = append(p.outcomes, o) },
	}
}

func (p *sessionProbe) mustSingleOutcome(t *testing.T, want SessionState) Outcome {
	t.Helper()
	if len(p.outcomes) != 1 {
		t.Fatalf("expected exactly one terminal outcome, got %d", len(p.outcomes))
	}
	if p.outcomes[0].State != want {
		t.Fatalf("expected %s, got %s (err=%v)", want, p.outcomes[0].State, p.outcomes[0].Err)
	}
	return p.outcomes[0]
}

func TestPaymentHappyPath(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	probe := &sessionProbe{}
	session := w.Payments.Run(testTarget(), probe.hooks())

	if len(gw.formCalls) != 1 {
		t.Fatalf("expected form fetch, got %d", len(gw.formCalls))
	}
	gw.formCalls[0].cb(testForm(100), nil)

	// Auto-confirmed; balance sufficient; settlement goes out.
	if len(gw.submitCalls) != 1 {
		t.Fatalf("expected one settlement, got %d", len(gw.submitCalls))
	}
	if gw.submitCalls[0].formID != "f1" {
		t.Errorf("expected settlement against fetched form, got %q", gw.submitCalls[0].formID)
	}
	gw.submitCalls[0].cb(&ledger.SettlementResult{TransactionID: "txn_9", Balance: 900}, nil)

	outcome := probe.mustSingleOutcome(t, StateSettled)
	if outcome.TransactionID != "txn_9" {
		t.Errorf("expected transaction id, got %q", outcome.TransactionID)
	}
	if session.State != StateSettled {
		t.Errorf("expected session state settled, got %s", session.State)
	}

	// Settlement invalidates the ledger (all three views reload) and the
	// balance, and reserves the spend locally until the refresh lands.
	if len(gw.txnCalls) != 3 {
		t.Errorf("expected one ledger invalidation (3 view reloads), got %d", len(gw.txnCalls))
	}
	if len(gw.statusCalls) != 1 {
		t.Errorf("expected one balance refresh, got %d", len(gw.statusCalls))
	}
	if got := w.Balance.Read().Amount; got != 900 {
		t.Errorf("expected reserved spend visible immediately, got %d", got)
	}
}

func TestDismissAtConfirmationMakesNoSettlementCall(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	var outcomes []Outcome
	w.Payments.RunWithForm(testTarget(), testForm(100), Hooks{
		OnConfirmationNeeded: func(_ *ledger.PaymentForm, _, dismiss func()) { dismiss() },
		OnTerminal:           func(o Outcome) { outcomes = append(outcomes, o) },
	})

	if len(outcomes) != 1 || outcomes[0].State != StateCancelled {
		t.Fatalf("expected exactly one cancelled outcome, got %v", outcomes)
	}
	if len(gw.submitCalls) != 0 {
		t.Errorf("expected no settlement call, got %d", len(gw.submitCalls))
	}
	if len(gw.formCalls) != 0 {
		t.Errorf("expected no form fetch with a pre-fetched form, got %d", len(gw.formCalls))
	}
}

func TestInsufficientBalanceTopupThenSettled(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(50)

	var topupShortfall int64
	probe := &sessionProbe{}
	hooks := probe.hooks()
	hooks.OnTopupNeeded = func(shortfall int64, _ []TopupOption, purchased, _ func(), _ func(error)) {
		topupShortfall = shortfall
		// Simulate a successful store purchase landing on the balance.
		w.Balance.ApplyPush(550)
		purchased()
	}

	w.Payments.RunWithForm(testTarget(), testForm(100), hooks)

	// The top-up sheet waits for the catalog, loaded on first use.
	if len(gw.optionsCalls) != 1 {
		t.Fatalf("expected one catalog load, got %d", len(gw.optionsCalls))
	}
	gw.optionsCalls[0]([]ledger.TopupOption{{ID: "opt_100", Stars: 100}}, nil)

	if topupShortfall != 50 {
		t.Errorf("expected shortfall 50, got %d", topupShortfall)
	}
	if len(gw.submitCalls) != 1 {
		t.Fatalf("expected settlement after top-up, got %d", len(gw.submitCalls))
	}
	gw.submitCalls[0].cb(&ledger.SettlementResult{TransactionID: "txn_1", Balance: 450}, nil)

	probe.mustSingleOutcome(t, StateSettled)
	if len(gw.txnCalls) != 3 {
		t.Errorf("expected exactly one ledger invalidation, got %d view reloads", len(gw.txnCalls))
	}
}

func TestTopupPromptLoadsCatalogOnDemand(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(50)

	var promptOptions [][]TopupOption
	probe := &sessionProbe{}
	hooks := probe.hooks()
	hooks.OnTopupNeeded = func(_ int64, options []TopupOption, _, dismiss func(), _ func(error)) {
		promptOptions = append(promptOptions, options)
		dismiss()
	}

	// Nothing has touched the catalog yet; entering the top-up flow must
	// load it rather than open an empty sheet.
	w.Payments.RunWithForm(testTarget(), testForm(100), hooks)

	if len(promptOptions) != 0 {
		t.Fatalf("expected prompt held back until the catalog loads, got %d prompts", len(promptOptions))
	}
	if len(gw.optionsCalls) != 1 {
		t.Fatalf("expected the top-up flow to trigger a catalog load, got %d", len(gw.optionsCalls))
	}

	gw.optionsCalls[0]([]ledger.TopupOption{
		{ID: "opt_100", Stars: 100},
		{ID: "opt_500", Stars: 500},
	}, nil)

	if len(promptOptions) != 1 {
		t.Fatalf("expected one prompt after the catalog loaded, got %d", len(promptOptions))
	}
	if len(promptOptions[0]) != 2 {
		t.Errorf("expected both covering tiers offered, got %d", len(promptOptions[0]))
	}
	probe.mustSingleOutcome(t, StateCancelled)
}

func TestTopupPromptDroppedWhenCancelledDuringCatalogLoad(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(50)

	probe := &sessionProbe{}
	hooks := probe.hooks()
	hooks.OnTopupNeeded = func(int64, []TopupOption, func(), func(), func(error)) {
		t.Fatal("top-up prompt must not open for a cancelled session")
	}

	session := w.Payments.RunWithForm(testTarget(), testForm(100), hooks)
	session.Cancel()
	gw.optionsCalls[0]([]ledger.TopupOption{{ID: "opt_100", Stars: 100}}, nil)

	probe.mustSingleOutcome(t, StateCancelled)
}

func TestServerBalanceTooLowEntersTopup(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	var topupAsked bool
	probe := &sessionProbe{}
	hooks := probe.hooks()
	hooks.OnTopupNeeded = func(_ int64, _ []TopupOption, _, dismiss func(), _ func(error)) {
		topupAsked = true
		dismiss()
	}

	session := w.Payments.RunWithForm(testTarget(), testForm(100), hooks)

	gw.submitCalls[0].cb(nil, &ledger.RemoteError{Status: 400, Code: ledger.CodeBalanceTooLow, Text: "not enough stars"})
	gw.optionsCalls[0]([]ledger.TopupOption{{ID: "opt_500", Stars: 500}}, nil)

	if !topupAsked {
		t.Fatal("expected server-side BALANCE_TOO_LOW to open the top-up flow")
	}
	probe.mustSingleOutcome(t, StateCancelled)
	if session.State != StateCancelled {
		t.Errorf("expected cancelled, got %s", session.State)
	}
}

func TestFormExpiredRetriesOnceThenFails(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	probe := &sessionProbe{}
	w.Payments.Run(testTarget(), probe.hooks())
	gw.formCalls[0].cb(testForm(100), nil)

	expired := &ledger.RemoteError{Status: 400, Code: ledger.CodeFormExpired, Text: "form expired"}

	gw.submitCalls[0].cb(nil, expired)
	if len(gw.formCalls) != 2 {
		t.Fatalf("expected one form re-fetch, got %d fetches", len(gw.formCalls))
	}

	refreshed := testForm(100)
	refreshed.FormID = "f2"
	gw.formCalls[1].cb(refreshed, nil)

	if len(gw.submitCalls) != 2 {
		t.Fatalf("expected a second settlement with the new form, got %d", len(gw.submitCalls))
	}
	if gw.submitCalls[1].formID != "f2" {
		t.Errorf("expected settlement against refreshed form, got %q", gw.submitCalls[1].formID)
	}

	// A second expiry is fatal; never a third loop.
	gw.submitCalls[1].cb(nil, expired)

	outcome := probe.mustSingleOutcome(t, StateFailed)
	var remote *ledger.RemoteError
	if !errors.As(outcome.Err, &remote) || remote.Code != ledger.CodeFormExpired {
		t.Errorf("expected raw FORM_EXPIRED error, got %v", outcome.Err)
	}
	if len(gw.formCalls) != 2 || len(gw.submitCalls) != 2 {
		t.Errorf("expected no third attempt, got %d fetches / %d submits", len(gw.formCalls), len(gw.submitCalls))
	}
}

func TestUnavailableBalanceRefreshedOnceBeforeDeciding(t *testing.T) {
	w, gw := newTestWallet(t)

	probe := &sessionProbe{}
	w.Payments.RunWithForm(testTarget(), testForm(100), probe.hooks())

	// No settlement yet: the balance has never loaded, so the session
	// refreshes it first.
	if len(gw.submitCalls) != 0 {
		t.Fatalf("expected settlement deferred behind balance refresh, got %d", len(gw.submitCalls))
	}
	if len(gw.statusCalls) != 1 {
		t.Fatalf("expected one balance refresh, got %d", len(gw.statusCalls))
	}

	gw.statusCalls[0](&ledger.StatusResponse{Balance: 500}, nil)

	if len(gw.submitCalls) != 1 {
		t.Fatalf("expected settlement after refresh showed funds, got %d", len(gw.submitCalls))
	}
	gw.submitCalls[0].cb(&ledger.SettlementResult{TransactionID: "txn_1", Balance: 400}, nil)
	probe.mustSingleOutcome(t, StateSettled)
}

func TestPurchasesUnsupportedFailsTopup(t *testing.T) {
	w, gw := newTestWallet(t)
	gw.purchases = false
	w.Balance.ApplyPush(10)

	probe := &sessionProbe{}
	hooks := probe.hooks()
	hooks.OnTopupNeeded = func(int64, []TopupOption, func(), func(), func(error)) {
		t.Fatal("top-up hook must not run when purchases are unsupported")
	}

	w.Payments.RunWithForm(testTarget(), testForm(100), hooks)

	outcome := probe.mustSingleOutcome(t, StateFailed)
	if !errors.Is(outcome.Err, ErrPurchasesUnsupported) {
		t.Errorf("expected ErrPurchasesUnsupported, got %v", outcome.Err)
	}
	if len(gw.submitCalls) != 0 {
		t.Errorf("expected no settlement attempt, got %d", len(gw.submitCalls))
	}
}

func TestCancelDuringSettlementDropsLateCallback(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	probe := &sessionProbe{}
	session := w.Payments.RunWithForm(testTarget(), testForm(100), probe.hooks())

	if len(gw.submitCalls) != 1 {
		t.Fatalf("expected settlement in flight, got %d", len(gw.submitCalls))
	}

	session.Cancel()
	probe.mustSingleOutcome(t, StateCancelled)

	// The settlement response arrives after cancellation; it must not
	// resurrect the session or trigger invalidations.
	gw.submitCalls[0].cb(&ledger.SettlementResult{TransactionID: "txn_9", Balance: 900}, nil)

	if len(probe.outcomes) != 1 {
		t.Fatalf("expected terminal delivered exactly once, got %d", len(probe.outcomes))
	}
	if session.State != StateCancelled {
		t.Errorf("expected cancelled to stick, got %s", session.State)
	}
	if len(gw.txnCalls) != 0 || len(gw.statusCalls) != 0 {
		t.Error("expected no invalidation after a dropped late callback")
	}
}

func TestRecurringSettlementInvalidatesSubscriptions(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	form := testForm(25)
	form.Recurring = true

	probe := &sessionProbe{}
	w.Payments.RunWithForm(testTarget(), form, probe.hooks())
	gw.submitCalls[0].cb(&ledger.SettlementResult{TransactionID: "txn_1", Balance: 975}, nil)

	probe.mustSingleOutcome(t, StateSettled)
	if len(gw.subsCalls) != 1 {
		t.Errorf("expected subscription list reload after recurring settlement, got %d", len(gw.subsCalls))
	}
}

func TestDoubleContinuationLandsOnce(t *testing.T) {
	w, gw := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	var outcomes []Outcome
	w.Payments.RunWithForm(testTarget(), testForm(100), Hooks{
		OnConfirmationNeeded: func(_ *ledger.PaymentForm, confirm, dismiss func()) {
			// A sloppy UI fires both; only the first may land.
			dismiss()
			confirm()
		},
		OnTerminal: func(o Outcome) { outcomes = append(outcomes, o) },
	})

	if len(outcomes) != 1 || outcomes[0].State != StateCancelled {
		t.Fatalf("expected single cancelled outcome, got %v", outcomes)
	}
	if len(gw.submitCalls) != 0 {
		t.Errorf("expected no settlement after dismissal, got %d", len(gw.submitCalls))
	}
}

func TestEventsOutOfStateAreIgnored(t *testing.T) {
	w, _ := newTestWallet(t)
	w.Balance.ApplyPush(1000)

	session := w.Payments.RunWithForm(testTarget(), testForm(100), Hooks{
		OnConfirmationNeeded: func(*ledger.PaymentForm, func(), func()) {
			// Hold at confirmation.
		},
	})

	session.dispatch(evSettleResult{result: &ledger.SettlementResult{TransactionID: "x"}})
	if session.State != StateAwaitingConfirmation {
		t.Fatalf("expected stray event ignored, state is %s", session.State)
	}

	session.dispatch(evToppedUp{})
	if session.State != StateAwaitingConfirmation {
		t.Fatalf("expected stray event ignored, state is %s", session.State)
	}
}
