package ledger

import (
	"fmt"
	"time"
)

// Direction classifies a transaction relative to the account.
type Direction string

const (
	// DirectionAll selects the unfiltered feed.
	DirectionAll Direction = "all"
	// DirectionIncoming selects credits only.
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing selects debits only.
	DirectionOutgoing Direction = "outgoing"
)

// CounterpartyKind describes what kind of entity sits on the other side of a
// transaction.
type CounterpartyKind string

const (
	CounterpartyPeer        CounterpartyKind = "peer"
	CounterpartyPlatform    CounterpartyKind = "platform"
	CounterpartyUnsupported CounterpartyKind = "unsupported"
)

// Counterparty identifies the other side of a transaction.
type Counterparty struct {
	Kind CounterpartyKind `json:"kind"`
	// PeerID is set for kind "peer".
	PeerID string `json:"peer_id,omitempty"`
	// Source is set for kind "platform" (e.g. app store, fragment).
	Source string `json:"source,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Transaction is a single immutable entry in the Stars ledger.
type Transaction struct {
	ID           string       `json:"id"`
	Amount       int64        `json:"amount"` // positive = credit, negative = debit
	Counterparty Counterparty `json:"counterparty"`
	Date         time.Time    `json:"date"`
	Refunded     bool         `json:"refunded,omitempty"`
	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
}

// Credit reports whether the transaction added Stars to the balance.
func (t Transaction) Credit() bool { return t.Amount > 0 }

// Subscription is a recurring Stars charge against the account.
type Subscription struct {
	ID        string    `json:"id"`
	PeerTitle string    `json:"peer_title"`
	Amount    int64     `json:"amount"`
	Period    int       `json:"period"` // seconds
	UntilDate time.Time `json:"until_date"`
	Cancelled bool      `json:"cancelled,omitempty"`
}

// StatusResponse is returned by the balance/status endpoint. It carries the
// authoritative balance plus an inline first page of history and
// subscriptions so a fresh session can render without extra round trips.
type StatusResponse struct {
	Balance       int64          `json:"balance"`
	History       []Transaction  `json:"history,omitempty"`
	HasMore       bool           `json:"has_more"`
	NextCursor    string         `json:"next_cursor,omitempty"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
	// SubsHasMore / SubsNextCursor paginate the inline subscription list.
	SubsHasMore    bool   `json:"subs_has_more"`
	SubsNextCursor string `json:"subs_next_cursor,omitempty"`
}

// TransactionPage is one page of the transaction feed. Every page doubles as
// a balance heartbeat.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	HasMore      bool          `json:"has_more"`
	NextCursor   string        `json:"next_cursor,omitempty"`
	Balance      int64         `json:"balance"`
}

// SubscriptionPage is one page of the recurring-charges list.
type SubscriptionPage struct {
	Subscriptions []Subscription `json:"subscriptions"`
	HasMore       bool           `json:"has_more"`
	NextCursor    string         `json:"next_cursor,omitempty"`
	Balance       int64          `json:"balance"`
}

// StorePrice is a store-native price resolved for a top-up product.
type StorePrice struct {
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// TopupOption is one purchasable Star tier.
type TopupOption struct {
	ID       string `json:"id"`
	Stars    int64  `json:"stars"`
	Amount   int64  `json:"amount"` // price in minor units
	Currency string `json:"currency"`
	// StoreProduct is the platform store product identifier, when the tier
	// can be bought through a native store.
	StoreProduct string `json:"store_product,omitempty"`
}

// TopupOptionsResponse is the full top-up catalog.
type TopupOptionsResponse struct {
	Options []TopupOption `json:"options"`
}

// StorePricesRequest asks for store-native prices in one batch.
type StorePricesRequest struct {
	ProductIDs []string `json:"product_ids"`
}

// StorePricesResponse maps product id to resolved price. Unresolvable
// products are simply absent.
type StorePricesResponse struct {
	Prices map[string]StorePrice `json:"prices"`
}

// LabeledPrice is one line of an invoice price breakdown.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// PaymentForm is a server-issued, short-lived description of what a payment
// will cost. Settlement must reference its FormID.
type PaymentForm struct {
	FormID    string         `json:"form_id"`
	Title     string         `json:"title"`
	BotID     string         `json:"bot_id,omitempty"`
	Prices    []LabeledPrice `json:"prices"`
	Recurring bool           `json:"recurring,omitempty"`
}

// TotalStars sums the price breakdown.
func (f *PaymentForm) TotalStars() int64 {
	var total int64
	for _, p := range f.Prices {
		total += p.Amount
	}
	return total
}

// PaymentFormRequest requests a payment form for an invoice target.
type PaymentFormRequest struct {
	Invoice InvoiceTarget `json:"invoice"`
}

// SubmitPaymentRequest settles a previously fetched form.
type SubmitPaymentRequest struct {
	FormID  string        `json:"form_id"`
	Invoice InvoiceTarget `json:"invoice"`
	// IdempotencyKey lets the backend dedupe retried submissions.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SettlementResult confirms a settled payment.
type SettlementResult struct {
	TransactionID string `json:"transaction_id"`
	Balance       int64  `json:"balance"`
}

// CapabilitiesResponse reports account-level feature flags.
type CapabilitiesResponse struct {
	PurchasesSupported bool `json:"purchases_supported"`
}

// InvoiceKind enumerates the things a payment session can pay for.
type InvoiceKind string

const (
	InvoiceTopup        InvoiceKind = "topup"
	InvoiceMessage      InvoiceKind = "message"
	InvoiceGiftUpgrade  InvoiceKind = "gift_upgrade"
	InvoiceGiftTransfer InvoiceKind = "gift_transfer"
)

// InvoiceTarget is an opaque-to-the-core description of what is being bought.
type InvoiceTarget struct {
	Kind InvoiceKind `json:"kind"`
	// Slug carries the backend-issued invoice identifier (message invoice,
	// gift id, or top-up option id depending on Kind).
	Slug string `json:"slug"`
	// PeerID is the recipient for gift transfers, empty otherwise.
	PeerID string `json:"peer_id,omitempty"`
}

func (t InvoiceTarget) String() string {
	if t.PeerID != "" {
		return fmt.Sprintf("%s:%s@%s", t.Kind, t.Slug, t.PeerID)
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.Slug)
}

// RemoteError is an error reported by the ledger backend. Code and Text are
// preserved verbatim for display.
type RemoteError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Text   string `json:"error"`
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ledgerd error (%s): %s", e.Code, e.Text)
	}
	return fmt.Sprintf("ledgerd error (%d): %s", e.Status, e.Text)
}

// Well-known remote error codes the payment flow reacts to.
const (
	CodeBalanceTooLow = "BALANCE_TOO_LOW"
	CodeFormExpired   = "FORM_EXPIRED"
)
