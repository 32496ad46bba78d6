package wallet

import (
	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/logging"
)

// uncollapsedStars are the round denominations always shown in the top-up
// sheet; everything else starts behind the expand affordance.
var uncollapsedStars = map[int64]bool{
	100:  true,
	250:  true,
	500:  true,
	1000: true,
	2500: true,
}

// TopupOption is one purchasable Star tier as presented to the UI.
type TopupOption struct {
	ledger.TopupOption

	// Collapsed tiers start hidden behind the expand affordance.
	Collapsed bool

	// Store-price enrichment is best effort and never blocks the base list.
	StorePrice        *ledger.StorePrice
	StorePriceLoading bool
	StorePriceMissing bool
}

// TopupCatalog holds the purchasable tiers, loaded once per session. Run
// loop only.
type TopupCatalog struct {
	gw     Gateway
	logger logging.Logger
	notice func(string)

	options []TopupOption
	loading bool
	loaded  bool
	waiters []func()

	subscribers []func()
}

func newTopupCatalog(gw Gateway, logger logging.Logger, notice func(string)) *TopupCatalog {
	if notice == nil {
		notice = func(string) {}
	}
	return &TopupCatalog{gw: gw, logger: logger, notice: notice}
}

// Get returns the cached catalog, possibly empty before the first load
// completes, and triggers the load if it has not happened yet. A failed load
// leaves the catalog unloaded so the next Get retries.
func (c *TopupCatalog) Get() []TopupOption {
	if !c.loading && !c.loaded {
		c.loading = true
		c.gw.GetTopupOptions(c.onOptions)
	}
	return c.options
}

// Loading reports whether the initial catalog load is outstanding.
func (c *TopupCatalog) Loading() bool { return c.loading }

// whenLoaded runs fn once the catalog has options, triggering the load on
// demand. If a load attempt fails, fn still runs (against the empty catalog)
// rather than hanging its caller.
func (c *TopupCatalog) whenLoaded(fn func()) {
	if c.loaded {
		fn()
		return
	}
	c.waiters = append(c.waiters, fn)
	c.Get()
}

// Subscribe registers a change listener.
func (c *TopupCatalog) Subscribe(fn func()) {
	c.subscribers = append(c.subscribers, fn)
}

func (c *TopupCatalog) onOptions(options []ledger.TopupOption, err error) {
	c.loading = false
	if err != nil {
		c.logger.WithError(err).Warn("top-up catalog load failed")
		c.notify()
		c.drainWaiters()
		return
	}

	c.loaded = true
	c.options = make([]TopupOption, 0, len(options))
	var storeProducts []string
	for _, opt := range options {
		entry := TopupOption{
			TopupOption: opt,
			Collapsed:   !uncollapsedStars[opt.Stars],
		}
		if opt.StoreProduct != "" {
			entry.StorePriceLoading = true
			storeProducts = append(storeProducts, opt.StoreProduct)
		}
		c.options = append(c.options, entry)
	}
	c.notify()
	c.drainWaiters()

	if len(storeProducts) > 0 {
		c.gw.ResolveStorePrices(storeProducts, c.onStorePrices)
	}
}

func (c *TopupCatalog) drainWaiters() {
	waiters := c.waiters
	c.waiters = nil
	for _, fn := range waiters {
		fn()
	}
}

func (c *TopupCatalog) onStorePrices(prices map[string]ledger.StorePrice, err error) {
	if err != nil {
		c.logger.WithError(err).Warn("store price enrichment failed")
		c.notice("Store prices are unavailable right now.")
		for i := range c.options {
			if c.options[i].StorePriceLoading {
				c.options[i].StorePriceLoading = false
				c.options[i].StorePriceMissing = true
			}
		}
		c.notify()
		return
	}

	for i := range c.options {
		opt := &c.options[i]
		if !opt.StorePriceLoading {
			continue
		}
		opt.StorePriceLoading = false
		if price, ok := prices[opt.StoreProduct]; ok {
			p := price
			opt.StorePrice = &p
		} else {
			opt.StorePriceMissing = true
		}
	}
	c.notify()
}

// OptionsCovering returns the tiers whose Star amount covers the shortfall,
// falling back to the full catalog when none qualify.
func (c *TopupCatalog) OptionsCovering(shortfall int64) []TopupOption {
	var covering []TopupOption
	for _, opt := range c.options {
		if opt.Stars >= shortfall {
			covering = append(covering, opt)
		}
	}
	if len(covering) == 0 {
		return c.options
	}
	return covering
}

func (c *TopupCatalog) notify() {
	for _, fn := range c.subscribers {
		fn()
	}
}
