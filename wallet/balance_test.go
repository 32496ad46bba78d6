package wallet

import (
	"errors"
	"testing"
	"time"

	"github.com/astrachat/starwallet/api/ledger"
)

func TestReadBeforeFirstLoadIsUnavailable(t *testing.T) {
	w, _ := newTestWallet(t)

	b := w.Balance.Read()
	if b.Available {
		t.Error("expected unavailable before first load")
	}
	if !b.Stale {
		t.Error("expected stale before first load")
	}
	if b.Amount != 0 {
		t.Errorf("expected zero amount, got %d", b.Amount)
	}
}

func TestEnsureFreshSingleFlight(t *testing.T) {
	w, gw := newTestWallet(t)

	var got []int64
	onDone := func(b Balance, err error) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, b.Amount)
	}

	w.Balance.EnsureFresh(0, onDone)
	w.Balance.EnsureFresh(0, onDone)
	w.Balance.EnsureFresh(0, onDone)

	if len(gw.statusCalls) != 1 {
		t.Fatalf("expected one coalesced gateway call, got %d", len(gw.statusCalls))
	}

	gw.statusCalls[0](&ledger.StatusResponse{Balance: 500}, nil)

	if len(got) != 3 {
		t.Fatalf("expected all three waiters to fire, got %d", len(got))
	}
	for _, amount := range got {
		if amount != 500 {
			t.Errorf("expected 500, got %d", amount)
		}
	}
	if b := w.Balance.Read(); !b.Available || b.Amount != 500 {
		t.Errorf("unexpected read after refresh: %+v", b)
	}
}

func TestEnsureFreshValueStillFreshSkipsNetwork(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Balance.EnsureFresh(0, nil)
	gw.statusCalls[0](&ledger.StatusResponse{Balance: 100}, nil)

	var calledBack bool
	w.Balance.EnsureFresh(time.Minute, func(b Balance, err error) {
		calledBack = true
		if b.Amount != 100 || err != nil {
			t.Errorf("unexpected callback: %+v %v", b, err)
		}
	})

	if len(gw.statusCalls) != 1 {
		t.Fatalf("expected no second gateway call, got %d", len(gw.statusCalls))
	}
	if !calledBack {
		t.Error("expected immediate callback with cached value")
	}
}

func TestFailedRefreshKeepsStaleValue(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Balance.EnsureFresh(0, nil)
	gw.statusCalls[0](&ledger.StatusResponse{Balance: 300}, nil)

	var gotErr error
	w.Balance.EnsureFresh(0, func(b Balance, err error) {
		gotErr = err
		if b.Amount != 300 {
			t.Errorf("expected stale value in failure callback, got %d", b.Amount)
		}
	})
	gw.statusCalls[1](nil, errors.New("backend down"))

	if gotErr == nil {
		t.Fatal("expected error to propagate to waiter")
	}
	if b := w.Balance.Read(); b.Amount != 300 || !b.Available {
		t.Errorf("expected stale value to survive failure, got %+v", b)
	}

	// In-flight flag is cleared; the next call issues a new request.
	w.Balance.EnsureFresh(0, nil)
	if len(gw.statusCalls) != 3 {
		t.Fatalf("expected retry to issue a new request, got %d calls", len(gw.statusCalls))
	}
}

func TestApplyPushNotifiesOnChangeOnly(t *testing.T) {
	w, _ := newTestWallet(t)

	var notifications int
	w.Balance.Subscribe(func(Balance) { notifications++ })

	w.Balance.ApplyPush(700)
	if notifications != 1 {
		t.Fatalf("expected one notification, got %d", notifications)
	}

	w.Balance.ApplyPush(700)
	if notifications != 1 {
		t.Fatalf("expected no notification for unchanged amount, got %d", notifications)
	}

	w.Balance.ApplyPush(800)
	if notifications != 2 {
		t.Fatalf("expected notification on change, got %d", notifications)
	}
}

func TestReserveClampsAndClearsOnAuthoritativeUpdate(t *testing.T) {
	w, _ := newTestWallet(t)

	w.Balance.ApplyPush(100)

	w.Balance.Reserve(150)
	if got := w.Balance.Read().Amount; got != 0 {
		t.Fatalf("expected reserve to clamp at zero, got %d", got)
	}

	// The next authoritative value supersedes the local deduction.
	w.Balance.ApplyPush(40)
	if got := w.Balance.Read().Amount; got != 40 {
		t.Fatalf("expected authoritative update to clear reserve, got %d", got)
	}
}

func TestStatusSeedsLedgerViewsFirstTimeOnly(t *testing.T) {
	w, gw := newTestWallet(t)

	credit := ledger.Transaction{ID: "t1", Amount: 100}
	debit := ledger.Transaction{ID: "t2", Amount: -30}

	w.Balance.EnsureFresh(0, nil)
	gw.statusCalls[0](&ledger.StatusResponse{
		Balance:    500,
		History:    []ledger.Transaction{credit, debit},
		HasMore:    true,
		NextCursor: "c1",
	}, nil)

	if got := w.Transactions.Items(ViewAll); len(got) != 2 {
		t.Fatalf("expected seeded ALL view, got %v", got)
	}
	if got := w.Transactions.Items(ViewIncoming); len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected credit in INCOMING, got %v", got)
	}
	if got := w.Transactions.Items(ViewOutgoing); len(got) != 1 || got[0].ID != "t2" {
		t.Fatalf("expected debit in OUTGOING, got %v", got)
	}
	if w.Transactions.EndReached(ViewAll) {
		t.Error("expected more pages after seed")
	}

	// No redundant first-page fetch: seeded views page from the cursor.
	w.Transactions.LoadMore(ViewAll)
	if len(gw.txnCalls) != 1 || gw.txnCalls[0].cursor != "c1" {
		t.Fatalf("expected continuation from seed cursor, got %+v", gw.txnCalls)
	}

	// A later refresh must not reseed over paged data.
	w.Balance.EnsureFresh(0, nil)
	gw.statusCalls[1](&ledger.StatusResponse{
		Balance: 480,
		History: []ledger.Transaction{{ID: "t9", Amount: -1}},
		HasMore: false,
	}, nil)
	if got := w.Transactions.Items(ViewAll); len(got) != 2 {
		t.Fatalf("expected seed to apply first time only, got %v", got)
	}
}

func TestStatusSeedsSubscriptions(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Balance.EnsureFresh(0, nil)
	gw.statusCalls[0](&ledger.StatusResponse{
		Balance:        500,
		Subscriptions:  []ledger.Subscription{{ID: "sub1", Amount: 25}},
		SubsHasMore:    true,
		SubsNextCursor: "s1",
	}, nil)

	if got := w.Subscriptions.Items(); len(got) != 1 || got[0].ID != "sub1" {
		t.Fatalf("expected seeded subscription list, got %v", got)
	}
	if w.Subscriptions.EndReached() {
		t.Error("expected more subscription pages")
	}
}

func TestStaleAfterFreshnessWindow(t *testing.T) {
	w, gw := newTestWallet(t)

	now := time.Now()
	w.Balance.now = func() time.Time { return now }

	w.Balance.EnsureFresh(0, nil)
	gw.statusCalls[0](&ledger.StatusResponse{Balance: 10}, nil)

	if w.Balance.Read().Stale {
		t.Error("expected fresh right after refresh")
	}

	now = now.Add(DefaultFreshnessWindow + time.Second)
	if !w.Balance.Read().Stale {
		t.Error("expected stale after the freshness window")
	}

	// EnsureFresh within a generous maxAge still refetches once stale
	// relative to that maxAge.
	w.Balance.EnsureFresh(time.Minute, nil)
	if len(gw.statusCalls) != 2 {
		t.Fatalf("expected refetch for stale value, got %d calls", len(gw.statusCalls))
	}
}
