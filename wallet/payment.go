package wallet

import (
	"errors"

	"github.com/google/uuid"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/logging"
	"github.com/astrachat/starwallet/monitoring"
)

// SessionState is a payment session's position in the orchestration machine.
type SessionState int

const (
	StateFetchingForm SessionState = iota
	StateAwaitingConfirmation
	StateSettling
	StateToppingUp
	StateRefreshingForm
	StateSettled
	StateFailed
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateFetchingForm:
		return "fetching_form"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateSettling:
		return "settling"
	case StateToppingUp:
		return "topping_up"
	case StateRefreshingForm:
		return "refreshing_form"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the session is finished.
func (s SessionState) Terminal() bool {
	return s == StateSettled || s == StateFailed || s == StateCancelled
}

// Outcome is the terminal result of a payment session. Err carries the raw
// remote code/text for failed sessions; a cancelled session is not an error.
type Outcome struct {
	State         SessionState
	TransactionID string
	Err           error
}

// Hooks are the caller's handles into a payment session. Continuations must
// be invoked on the run loop. A nil OnConfirmationNeeded confirms
// immediately (headless use); a nil OnTopupNeeded fails the session if a
// top-up becomes necessary.
type Hooks struct {
	OnConfirmationNeeded func(form *ledger.PaymentForm, confirm func(), dismiss func())
	OnTopupNeeded        func(shortfall int64, options []TopupOption, purchased func(), dismiss func(), failed func(error))
	OnTerminal           func(Outcome)
}

// PaymentOrchestrator drives payment sessions. Run loop only.
type PaymentOrchestrator struct {
	gw            Gateway
	balance       *BalanceCache
	ledger        *TransactionLedger
	subscriptions *SubscriptionList
	catalog       *TopupCatalog
	logger        logging.Logger
	metrics       *monitoring.Metrics
}

func newPaymentOrchestrator(gw Gateway, balance *BalanceCache, txns *TransactionLedger, subs *SubscriptionList, catalog *TopupCatalog, logger logging.Logger, metrics *monitoring.Metrics) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		gw:            gw,
		balance:       balance,
		ledger:        txns,
		subscriptions: subs,
		catalog:       catalog,
		logger:        logger,
		metrics:       metrics,
	}
}

// PaymentSession is one orchestration run. Transient; discard once terminal.
type PaymentSession struct {
	ID            uuid.UUID
	Target        ledger.InvoiceTarget
	Form          *ledger.PaymentForm
	RequiredStars int64
	State         SessionState
	FormRefreshes int

	orch  *PaymentOrchestrator
	hooks Hooks

	outcome          Outcome
	submitInFlight   bool
	balanceRechecked bool
	terminalSent     bool
}

// Run starts a session from a bare invoice target: fetch the form, confirm,
// settle.
func (o *PaymentOrchestrator) Run(target ledger.InvoiceTarget, hooks Hooks) *PaymentSession {
	s := o.newSession(target, hooks)
	s.State = StateFetchingForm
	s.runEffect(fxFetchForm)
	return s
}

// RunWithForm starts a session with a pre-fetched form, skipping straight to
// confirmation.
func (o *PaymentOrchestrator) RunWithForm(target ledger.InvoiceTarget, form *ledger.PaymentForm, hooks Hooks) *PaymentSession {
	s := o.newSession(target, hooks)
	s.Form = form
	s.RequiredStars = form.TotalStars()
	s.State = StateAwaitingConfirmation
	s.runEffect(fxAskConfirmation)
	return s
}

func (o *PaymentOrchestrator) newSession(target ledger.InvoiceTarget, hooks Hooks) *PaymentSession {
	return &PaymentSession{
		ID:     uuid.New(),
		Target: target,
		orch:   o,
		hooks:  hooks,
	}
}

// Cancel dismisses the session wherever it stands. In-flight network legs
// are not aborted; their callbacks are dropped once the session is terminal.
func (s *PaymentSession) Cancel() {
	s.dispatch(evDismissed{})
}

// events

type event interface{ isEvent() }

type evFormFetched struct {
	form *ledger.PaymentForm
	err  error
}
type evConfirmed struct{}
type evDismissed struct{}
type evBalanceEvaluated struct{ sufficient bool }
type evSettleResult struct {
	result *ledger.SettlementResult
	err    error
}
type evToppedUp struct{}
type evTopupFailed struct{ err error }
type evTopupUnsupported struct{}
type evFormRefreshed struct {
	form *ledger.PaymentForm
	err  error
}

func (evFormFetched) isEvent()      {}
func (evConfirmed) isEvent()        {}
func (evDismissed) isEvent()        {}
func (evBalanceEvaluated) isEvent() {}
func (evSettleResult) isEvent()     {}
func (evToppedUp) isEvent()         {}
func (evTopupFailed) isEvent()      {}
func (evTopupUnsupported) isEvent() {}
func (evFormRefreshed) isEvent()    {}

// effects

type effect int

const (
	fxFetchForm effect = iota
	fxAskConfirmation
	fxEvaluateBalance
	fxSubmit
	fxAskTopup
	fxRefreshForm
	fxFinish
)

// transition is the machine itself: deterministic, no I/O, testable without
// a gateway. It updates session bookkeeping (form, refresh budget, outcome)
// and names the effects to run; events that make no sense in the current
// state are ignored.
func transition(s *PaymentSession, ev event) (SessionState, []effect) {
	switch s.State {
	case StateFetchingForm:
		switch e := ev.(type) {
		case evFormFetched:
			if e.err != nil {
				return s.fail(e.err)
			}
			s.Form = e.form
			s.RequiredStars = e.form.TotalStars()
			return StateAwaitingConfirmation, []effect{fxAskConfirmation}
		case evDismissed:
			return s.cancel()
		}

	case StateAwaitingConfirmation:
		switch ev.(type) {
		case evConfirmed:
			return StateSettling, []effect{fxEvaluateBalance}
		case evDismissed:
			return s.cancel()
		}

	case StateSettling:
		switch e := ev.(type) {
		case evBalanceEvaluated:
			if e.sufficient {
				return StateSettling, []effect{fxSubmit}
			}
			return StateToppingUp, []effect{fxAskTopup}
		case evSettleResult:
			if e.err == nil {
				s.outcome = Outcome{State: StateSettled, TransactionID: e.result.TransactionID}
				return StateSettled, []effect{fxFinish}
			}
			switch remoteCode(e.err) {
			case ledger.CodeBalanceTooLow:
				return StateToppingUp, []effect{fxAskTopup}
			case ledger.CodeFormExpired:
				if s.FormRefreshes < 1 {
					s.FormRefreshes++
					return StateRefreshingForm, []effect{fxRefreshForm}
				}
				return s.fail(e.err)
			}
			return s.fail(e.err)
		case evDismissed:
			return s.cancel()
		}

	case StateToppingUp:
		switch e := ev.(type) {
		case evToppedUp:
			// Amount is re-checked, not assumed exact; the recheck may
			// refresh the balance again since the top-up just changed it.
			s.balanceRechecked = false
			return StateSettling, []effect{fxEvaluateBalance}
		case evTopupUnsupported:
			return s.fail(ErrPurchasesUnsupported)
		case evTopupFailed:
			return s.fail(e.err)
		case evDismissed:
			return s.cancel()
		}

	case StateRefreshingForm:
		switch e := ev.(type) {
		case evFormRefreshed:
			if e.err != nil {
				return s.fail(e.err)
			}
			s.Form = e.form
			s.RequiredStars = e.form.TotalStars()
			return StateSettling, []effect{fxEvaluateBalance}
		case evDismissed:
			return s.cancel()
		}
	}
	return s.State, nil
}

func (s *PaymentSession) fail(err error) (SessionState, []effect) {
	s.outcome = Outcome{State: StateFailed, Err: err}
	return StateFailed, []effect{fxFinish}
}

func (s *PaymentSession) cancel() (SessionState, []effect) {
	s.outcome = Outcome{State: StateCancelled}
	return StateCancelled, []effect{fxFinish}
}

func (s *PaymentSession) dispatch(ev event) {
	if s.State.Terminal() {
		// Late callback after the session ended; drop it.
		return
	}
	next, effects := transition(s, ev)
	s.State = next
	for _, fx := range effects {
		s.runEffect(fx)
	}
}

func (s *PaymentSession) runEffect(fx effect) {
	o := s.orch
	switch fx {
	case fxFetchForm:
		o.gw.GetPaymentForm(s.Target, func(form *ledger.PaymentForm, err error) {
			s.dispatch(evFormFetched{form: form, err: err})
		})

	case fxAskConfirmation:
		if s.hooks.OnConfirmationNeeded == nil {
			s.dispatch(evConfirmed{})
			return
		}
		confirm, dismiss := s.choice(evConfirmed{}, evDismissed{})
		s.hooks.OnConfirmationNeeded(s.Form, confirm, dismiss)

	case fxEvaluateBalance:
		s.evaluateBalance()

	case fxSubmit:
		if s.submitInFlight {
			return
		}
		s.submitInFlight = true
		o.gw.SubmitPayment(s.Form.FormID, s.Target, func(result *ledger.SettlementResult, err error) {
			s.submitInFlight = false
			s.dispatch(evSettleResult{result: result, err: err})
		})

	case fxAskTopup:
		if !o.gw.PurchasesSupported() {
			s.dispatch(evTopupUnsupported{})
			return
		}
		if s.hooks.OnTopupNeeded == nil {
			s.dispatch(evTopupFailed{err: errors.New("top-up required but no top-up handler installed")})
			return
		}
		// The catalog loads on first use; hold the prompt until the tiers
		// are in so the sheet never opens empty.
		o.catalog.whenLoaded(func() {
			if s.State != StateToppingUp {
				// Session moved on (e.g. cancelled) while the catalog loaded.
				return
			}
			shortfall := s.RequiredStars - o.balance.Read().Amount
			if shortfall < 0 {
				shortfall = 0
			}
			purchased, dismiss := s.choice(evToppedUp{}, evDismissed{})
			s.hooks.OnTopupNeeded(shortfall, o.catalog.OptionsCovering(shortfall), purchased, dismiss, func(err error) {
				s.dispatch(evTopupFailed{err: err})
			})
		})

	case fxRefreshForm:
		o.gw.GetPaymentForm(s.Target, func(form *ledger.PaymentForm, err error) {
			s.dispatch(evFormRefreshed{form: form, err: err})
		})

	case fxFinish:
		s.finish()
	}
}

// evaluateBalance decides sufficient/insufficient for the settling step. A
// stale or never-loaded balance gets one refresh before the verdict.
func (s *PaymentSession) evaluateBalance() {
	b := s.orch.balance.Read()
	if b.Available && b.Amount >= s.RequiredStars {
		s.dispatch(evBalanceEvaluated{sufficient: true})
		return
	}
	if (b.Stale || !b.Available) && !s.balanceRechecked {
		s.balanceRechecked = true
		s.orch.balance.EnsureFresh(0, func(b Balance, _ error) {
			// A failed refresh hands back the stale read; decide on that.
			s.dispatch(evBalanceEvaluated{sufficient: b.Amount >= s.RequiredStars})
		})
		return
	}
	s.dispatch(evBalanceEvaluated{sufficient: b.Amount >= s.RequiredStars})
}

// choice returns two continuations sharing a consumed flag, so a hook that
// calls both only lands the first.
func (s *PaymentSession) choice(a, b event) (func(), func()) {
	var used bool
	mk := func(ev event) func() {
		return func() {
			if used {
				return
			}
			used = true
			s.dispatch(ev)
		}
	}
	return mk(a), mk(b)
}

// finish delivers the terminal outcome exactly once. A settled session
// reserves the spent amount locally and invalidates the balance and ledger;
// a settled recurring invoice additionally invalidates the subscription
// list.
func (s *PaymentSession) finish() {
	if s.terminalSent {
		return
	}
	s.terminalSent = true

	o := s.orch
	o.metrics.RecordPaymentOutcome(s.State.String())
	o.logger.WithFields(logging.Fields{
		"session": s.ID.String(),
		"target":  s.Target.String(),
		"state":   s.State.String(),
	}).Info("payment session finished")

	if s.State == StateSettled {
		o.balance.Reserve(s.RequiredStars)
		o.balance.Invalidate()
		o.ledger.Invalidate(true)
		if s.Form != nil && s.Form.Recurring {
			o.subscriptions.Invalidate(true)
		}
	}

	if s.hooks.OnTerminal != nil {
		s.hooks.OnTerminal(s.outcome)
	}
}
