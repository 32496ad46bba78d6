package wallet

import (
	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/logging"
	"github.com/astrachat/starwallet/monitoring"
)

// View selects one of the three transaction feeds.
type View int

const (
	ViewAll View = iota
	ViewIncoming
	ViewOutgoing
	numViews
)

func (v View) String() string {
	switch v {
	case ViewAll:
		return "all"
	case ViewIncoming:
		return "incoming"
	case ViewOutgoing:
		return "outgoing"
	}
	return "unknown"
}

func (v View) direction() ledger.Direction {
	switch v {
	case ViewIncoming:
		return ledger.DirectionIncoming
	case ViewOutgoing:
		return ledger.DirectionOutgoing
	}
	return ledger.DirectionAll
}

type viewState struct {
	items       []ledger.Transaction
	cursor      string
	loading     bool
	endReached  bool
	everHadData bool
}

// TransactionLedger holds the three paginated views over the transaction
// feed. The server partitions by direction per request, so ALL is a superset
// of INCOMING plus OUTGOING by construction; the views page independently and
// may be transiently out of sync with each other. Must be used on the run
// loop only.
type TransactionLedger struct {
	gw      Gateway
	logger  logging.Logger
	metrics *monitoring.Metrics
	balance *BalanceCache

	views       [numViews]viewState
	subscribers []func(View)
}

func newTransactionLedger(gw Gateway, logger logging.Logger, metrics *monitoring.Metrics) *TransactionLedger {
	return &TransactionLedger{gw: gw, logger: logger, metrics: metrics}
}

// Items returns the view's transactions, newest first. The slice is shared;
// callers must not mutate it.
func (l *TransactionLedger) Items(view View) []ledger.Transaction {
	return l.views[view].items
}

// Loading reports whether a page fetch is outstanding for the view.
func (l *TransactionLedger) Loading(view View) bool { return l.views[view].loading }

// EndReached reports whether the view has been paged to exhaustion.
func (l *TransactionLedger) EndReached(view View) bool { return l.views[view].endReached }

// Subscribe registers a listener fired whenever a view's content or loading
// state changes.
func (l *TransactionLedger) Subscribe(fn func(View)) {
	l.subscribers = append(l.subscribers, fn)
}

// LoadMore fetches the view's next page. No-op while a fetch is outstanding
// or after the end of the feed; pagination per view is strictly sequential.
func (l *TransactionLedger) LoadMore(view View) {
	v := &l.views[view]
	if v.loading || v.endReached {
		return
	}
	v.loading = true
	l.gw.GetTransactions(view.direction(), v.cursor, func(page *ledger.TransactionPage, err error) {
		l.onPage(view, page, err)
	})
}

func (l *TransactionLedger) onPage(view View, page *ledger.TransactionPage, err error) {
	v := &l.views[view]
	v.loading = false
	if err != nil {
		// Keep what we have; the caller just sees the spinner stop.
		l.logger.WithError(err).WithFields(logging.Fields{"view": view.String()}).Warn("transaction page fetch failed")
		l.notify(view)
		return
	}

	v.items = append(v.items, page.Transactions...)
	v.cursor = page.NextCursor
	v.endReached = !page.HasMore
	v.everHadData = true
	l.metrics.RecordLedgerPage(view.String())

	// Every page doubles as a balance heartbeat.
	l.balance.applyHeartbeat(page.Balance)
	l.notify(view)
}

// Invalidate resets every view that is not mid-fetch; load additionally
// refetches the first page of each reset view.
func (l *TransactionLedger) Invalidate(load bool) {
	for view := ViewAll; view < numViews; view++ {
		v := &l.views[view]
		if v.loading {
			continue
		}
		l.views[view] = viewState{}
		l.notify(view)
		if load {
			l.LoadMore(view)
		}
	}
}

// Preload kicks off a first page fetch for every idle, unexhausted view that
// has never been paged.
func (l *TransactionLedger) Preload() {
	for view := ViewAll; view < numViews; view++ {
		v := &l.views[view]
		if !v.loading && !v.endReached && !v.everHadData {
			l.LoadMore(view)
		}
	}
}

// seedFromStatus installs the inline history carried by a status response,
// first time only. The history is partitioned into the direction views so a
// fresh session renders all three without extra round trips.
func (l *TransactionLedger) seedFromStatus(history []ledger.Transaction, hasMore bool, nextCursor string) {
	all := &l.views[ViewAll]
	if all.loading || len(all.items) > 0 || all.everHadData || len(history) == 0 {
		return
	}

	var incoming, outgoing []ledger.Transaction
	for _, txn := range history {
		if txn.Credit() {
			incoming = append(incoming, txn)
		} else {
			outgoing = append(outgoing, txn)
		}
	}

	for view, items := range map[View][]ledger.Transaction{
		ViewAll:      history,
		ViewIncoming: incoming,
		ViewOutgoing: outgoing,
	} {
		v := &l.views[view]
		if v.loading {
			continue
		}
		v.items = items
		v.cursor = nextCursor
		v.endReached = !hasMore
		v.everHadData = true
		l.notify(view)
	}
}

func (l *TransactionLedger) notify(view View) {
	for _, fn := range l.subscribers {
		fn(view)
	}
}
