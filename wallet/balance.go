package wallet

import (
	"time"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/logging"
	"github.com/astrachat/starwallet/monitoring"
)

// DefaultFreshnessWindow is how long a fetched balance counts as fresh.
const DefaultFreshnessWindow = 60 * time.Second

// Balance is a non-blocking read of the cached Stars balance. Available is
// false until the first successful load; Stale means the value is older than
// the freshness window and a caller may want EnsureFresh.
type Balance struct {
	Amount      int64
	Available   bool
	Stale       bool
	RefreshedAt time.Time
}

// BalanceCache owns the cached balance. All methods must be called on the
// wallet's run loop; single-flight is enforced with a flag plus a pending
// callback list, not a lock.
type BalanceCache struct {
	gw      Gateway
	logger  logging.Logger
	metrics *monitoring.Metrics
	window  time.Duration
	now     func() time.Time

	amount      int64
	reserved    int64
	available   bool
	refreshedAt time.Time

	loading bool
	pending []func(Balance, error)

	subscribers []func(Balance)

	// seed targets for the inline history carried by a status response.
	ledger        *TransactionLedger
	subscriptions *SubscriptionList
}

func newBalanceCache(gw Gateway, logger logging.Logger, metrics *monitoring.Metrics, window time.Duration) *BalanceCache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &BalanceCache{
		gw:      gw,
		logger:  logger,
		metrics: metrics,
		window:  window,
		now:     time.Now,
	}
}

// Read returns the best-known balance immediately. The amount has any local
// pending deduction subtracted, clamped at zero.
func (b *BalanceCache) Read() Balance {
	amount := b.amount - b.reserved
	if amount < 0 {
		amount = 0
	}
	return Balance{
		Amount:      amount,
		Available:   b.available,
		Stale:       !b.available || b.now().Sub(b.refreshedAt) > b.window,
		RefreshedAt: b.refreshedAt,
	}
}

// Subscribe registers a change listener. Fired whenever the readable amount
// changes.
func (b *BalanceCache) Subscribe(fn func(Balance)) {
	b.subscribers = append(b.subscribers, fn)
}

// EnsureFresh refreshes the balance unless a value newer than maxAge is
// already held. Concurrent callers coalesce onto the in-flight request;
// onDone (optional) fires once with the post-refresh read. maxAge <= 0 forces
// a refresh.
func (b *BalanceCache) EnsureFresh(maxAge time.Duration, onDone func(Balance, error)) {
	if b.loading {
		if onDone != nil {
			b.pending = append(b.pending, onDone)
		}
		return
	}
	if b.available && maxAge > 0 && b.now().Sub(b.refreshedAt) <= maxAge {
		if onDone != nil {
			onDone(b.Read(), nil)
		}
		return
	}

	b.loading = true
	if onDone != nil {
		b.pending = append(b.pending, onDone)
	}
	b.gw.GetStarsStatus(b.onStatus)
}

func (b *BalanceCache) onStatus(status *ledger.StatusResponse, err error) {
	b.loading = false
	waiters := b.pending
	b.pending = nil

	if err != nil {
		// Stale value stays; retry is caller-driven.
		b.metrics.RecordBalanceRefresh("error")
		b.logger.WithError(err).Warn("balance refresh failed")
		for _, fn := range waiters {
			fn(b.Read(), err)
		}
		return
	}

	b.metrics.RecordBalanceRefresh("ok")
	b.install(status.Balance)

	if b.ledger != nil {
		b.ledger.seedFromStatus(status.History, status.HasMore, status.NextCursor)
	}
	if b.subscriptions != nil {
		b.subscriptions.seedFromStatus(status.Subscriptions, status.SubsHasMore, status.SubsNextCursor)
	}

	for _, fn := range waiters {
		fn(b.Read(), nil)
	}
}

// ApplyPush applies a server-pushed balance unconditionally and notifies
// subscribers on change.
func (b *BalanceCache) ApplyPush(amount int64) {
	b.install(amount)
}

// Reserve records a local pending deduction, shown to readers until the next
// authoritative balance arrives and clears it. Used right after a settlement
// so the UI reflects the spend before the refresh lands.
func (b *BalanceCache) Reserve(amount int64) {
	if amount <= 0 {
		return
	}
	before := b.Read().Amount
	b.reserved += amount
	if b.Read().Amount != before {
		b.notify()
	}
}

// Invalidate marks the value stale and kicks off a refresh.
func (b *BalanceCache) Invalidate() {
	b.refreshedAt = time.Time{}
	b.EnsureFresh(0, nil)
}

// install records a server-confirmed amount, marking the value fresh. Any
// pending local deduction is superseded by it.
func (b *BalanceCache) install(amount int64) {
	if amount < 0 {
		amount = 0
	}
	before := b.Read().Amount
	wasAvailable := b.available
	b.amount = amount
	b.reserved = 0
	b.available = true
	b.refreshedAt = b.now()
	if b.Read().Amount != before || !wasAvailable {
		b.notify()
	}
}

// applyHeartbeat folds the balance carried on a ledger page into the cache.
func (b *BalanceCache) applyHeartbeat(amount int64) {
	b.install(amount)
}

func (b *BalanceCache) notify() {
	snapshot := b.Read()
	for _, fn := range b.subscribers {
		fn(snapshot)
	}
}
