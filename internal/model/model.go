package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Constants for order sides, statuses, and quote statuses.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderStatusNew       = "NEW"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusExecuted  = "EXECUTED"

	QuoteStatusActive    = "ACTIVE"
	QuoteStatusCancelled = "CANCELLED"
)

// Order represents an order captured for surveillance analysis.
// Orders are immutable once captured; the detection core only reads them.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	TraderID    string          `json:"trader_id"`
	AccountID   string          `json:"account_id"`
	SecurityID  string          `json:"security_id"`
	Side        string          `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
}

// TimeToCancel returns the interval between placement and cancellation,
// or zero if the order was never cancelled.
func (o *Order) TimeToCancel() time.Duration {
	if o.CancelledAt == nil {
		return 0
	}
	return o.CancelledAt.Sub(o.CreatedAt)
}

// IsCancelled reports whether the order ended cancelled.
func (o *Order) IsCancelled() bool { return o.Status == OrderStatusCancelled }

// IsExecuted reports whether the order ended executed.
func (o *Order) IsExecuted() bool { return o.Status == OrderStatusExecuted }

// Trade represents an executed trade captured for surveillance analysis.
type Trade struct {
	ID         uuid.UUID       `json:"id"`
	TraderID   string          `json:"trader_id"`
	AccountID  string          `json:"account_id"`
	SecurityID string          `json:"security_id"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Venue      string          `json:"venue"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Value returns the notional value of the trade (quantity * price).
func (t *Trade) Value() decimal.Decimal { return t.Quantity.Mul(t.Price) }

// Quote represents a two-sided quote submission.
type Quote struct {
	TraderID   string          `json:"trader_id"`
	AccountID  string          `json:"account_id"`
	SecurityID string          `json:"security_id"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	Status     string          `json:"status"`
	QuotedAt   time.Time       `json:"quoted_at"`
}

// MaterialEvent is a market-moving corporate announcement used by the
// insider-trading timing analyzer.
type MaterialEvent struct {
	SecurityID  string          `json:"security_id"`
	EventType   string          `json:"event_type"` // "earnings", "merger", "guidance", ...
	AnnouncedAt time.Time       `json:"announced_at"`
	PriceMove   decimal.Decimal `json:"price_move"` // post-announcement move, fractional
}

// NewOrderForTest creates an Order with fresh IDs for test fixtures.
func NewOrderForTest(trader, security, side, priceStr, qtyStr string, at time.Time) *Order {
	price, _ := decimal.NewFromString(priceStr)
	qty, _ := decimal.NewFromString(qtyStr)
	return &Order{
		ID:         uuid.New(),
		TraderID:   trader,
		AccountID:  "acct-" + trader,
		SecurityID: security,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Status:     OrderStatusNew,
		CreatedAt:  at,
	}
}

// NewTradeForTest creates a Trade with fresh IDs for test fixtures.
func NewTradeForTest(trader, security, side, priceStr, qtyStr string, at time.Time) *Trade {
	price, _ := decimal.NewFromString(priceStr)
	qty, _ := decimal.NewFromString(qtyStr)
	return &Trade{
		ID:         uuid.New(),
		TraderID:   trader,
		AccountID:  "acct-" + trader,
		SecurityID: security,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Venue:      "XTST",
		ExecutedAt: at,
	}
}
