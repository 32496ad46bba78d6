package wallet

import (
	"errors"
	"testing"

	"github.com/astrachat/starwallet/api/ledger"
)

func subsPage(balance int64, hasMore bool, cursor string, subs ...ledger.Subscription) *ledger.SubscriptionPage {
	return &ledger.SubscriptionPage{
		Subscriptions: subs,
		HasMore:       hasMore,
		NextCursor:    cursor,
		Balance:       balance,
	}
}

func TestSubscriptionLoadMoreIsSequential(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Subscriptions.LoadMore()
	w.Subscriptions.LoadMore()
	if len(gw.subsCalls) != 1 {
		t.Fatalf("expected one fetch while loading, got %d", len(gw.subsCalls))
	}

	gw.subsCalls[0](subsPage(100, true, "s1", ledger.Subscription{ID: "sub1"}), nil)

	w.Subscriptions.LoadMore()
	if len(gw.subsCalls) != 2 {
		t.Fatalf("expected next page fetch, got %d", len(gw.subsCalls))
	}
	gw.subsCalls[1](subsPage(100, false, "", ledger.Subscription{ID: "sub2"}), nil)

	if got := w.Subscriptions.Items(); len(got) != 2 || got[1].ID != "sub2" {
		t.Fatalf("unexpected items %v", got)
	}
	if !w.Subscriptions.EndReached() {
		t.Error("expected end reached")
	}

	w.Subscriptions.LoadMore()
	if len(gw.subsCalls) != 2 {
		t.Fatalf("expected exhausted list to stop paging, got %d", len(gw.subsCalls))
	}
}

func TestSubscriptionInvalidateReload(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Subscriptions.LoadMore()
	gw.subsCalls[0](subsPage(100, false, "", ledger.Subscription{ID: "sub1"}), nil)

	w.Subscriptions.Invalidate(true)
	if len(gw.subsCalls) != 2 {
		t.Fatalf("expected invalidate(load) to refetch, got %d", len(gw.subsCalls))
	}
	if got := w.Subscriptions.Items(); len(got) != 0 {
		t.Fatalf("expected cleared list pending reload, got %v", got)
	}

	gw.subsCalls[1](subsPage(100, false, "", ledger.Subscription{ID: "sub1"}, ledger.Subscription{ID: "sub2"}), nil)
	if got := w.Subscriptions.Items(); len(got) != 2 {
		t.Fatalf("expected reloaded list, got %v", got)
	}
}

func TestSubscriptionInvalidateSkipsMidFetch(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Subscriptions.LoadMore()
	w.Subscriptions.Invalidate(false)

	if len(gw.subsCalls) != 1 {
		t.Fatalf("expected no extra fetch for mid-flight invalidate, got %d", len(gw.subsCalls))
	}
	gw.subsCalls[0](subsPage(100, false, "", ledger.Subscription{ID: "sub1"}), nil)
	if got := w.Subscriptions.Items(); len(got) != 1 {
		t.Fatalf("expected in-flight page to land, got %v", got)
	}
}

func TestSubscriptionFailureKeepsData(t *testing.T) {
	w, gw := newTestWallet(t)

	w.Subscriptions.LoadMore()
	gw.subsCalls[0](subsPage(100, true, "s1", ledger.Subscription{ID: "sub1"}), nil)

	w.Subscriptions.LoadMore()
	gw.subsCalls[1](nil, errors.New("backend down"))

	if got := w.Subscriptions.Items(); len(got) != 1 {
		t.Fatalf("expected data to survive failure, got %v", got)
	}
	if w.Subscriptions.Loading() {
		t.Error("expected loading cleared")
	}
}
