package wallet

import (
	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/logging"
)

// SubscriptionList is the single paginated list of recurring Stars charges.
// It follows the same rules as a ledger view: sequential pagination, loading
// and endReached flags, wholesale reset on invalidation. Run loop only.
type SubscriptionList struct {
	gw      Gateway
	logger  logging.Logger
	balance *BalanceCache

	items       []ledger.Subscription
	cursor      string
	loading     bool
	endReached  bool
	everHadData bool

	subscribers []func()
}

func newSubscriptionList(gw Gateway, logger logging.Logger) *SubscriptionList {
	return &SubscriptionList{gw: gw, logger: logger}
}

// Items returns the loaded subscriptions. Shared slice; do not mutate.
func (s *SubscriptionList) Items() []ledger.Subscription { return s.items }

// Loading reports whether a page fetch is outstanding.
func (s *SubscriptionList) Loading() bool { return s.loading }

// EndReached reports whether the list has been paged to exhaustion.
func (s *SubscriptionList) EndReached() bool { return s.endReached }

// Subscribe registers a change listener.
func (s *SubscriptionList) Subscribe(fn func()) {
	s.subscribers = append(s.subscribers, fn)
}

// LoadMore fetches the next page. No-op while loading or after the end.
func (s *SubscriptionList) LoadMore() {
	if s.loading || s.endReached {
		return
	}
	s.loading = true
	s.gw.GetSubscriptions(s.cursor, s.onPage)
}

func (s *SubscriptionList) onPage(page *ledger.SubscriptionPage, err error) {
	s.loading = false
	if err != nil {
		s.logger.WithError(err).Warn("subscription page fetch failed")
		s.notify()
		return
	}

	s.items = append(s.items, page.Subscriptions...)
	s.cursor = page.NextCursor
	s.endReached = !page.HasMore
	s.everHadData = true
	s.balance.applyHeartbeat(page.Balance)
	s.notify()
}

// Invalidate resets the list unless a fetch is mid-flight; load refetches the
// first page.
func (s *SubscriptionList) Invalidate(load bool) {
	if s.loading {
		return
	}
	s.items = nil
	s.cursor = ""
	s.endReached = false
	s.everHadData = false
	s.notify()
	if load {
		s.LoadMore()
	}
}

// seedFromStatus installs the inline subscriptions from a status response,
// first time only.
func (s *SubscriptionList) seedFromStatus(subs []ledger.Subscription, hasMore bool, nextCursor string) {
	if s.loading || s.everHadData || len(subs) == 0 {
		return
	}
	s.items = subs
	s.cursor = nextCursor
	s.endReached = !hasMore
	s.everHadData = true
	s.notify()
}

func (s *SubscriptionList) notify() {
	for _, fn := range s.subscribers {
		fn()
	}
}
