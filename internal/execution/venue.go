// Package execution places orders on a venue and keeps the position and
// trade books consistent with confirmed fills. Bookkeeping happens only
// after a fill is confirmed; a failed or unconfirmed order never mutates
// the position book.
package execution

import (
	"context"
	"time"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

const (
	OrderStatusNew       = "new"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// OrderRequest describes one order to place. Price is the reference price
// used by simulated fills and as the limit for limit orders.
type OrderRequest struct {
	Symbol   string
	Side     string
	Quantity int64
	Type     string
	Price    float64
	ClientID string
}

// OrderAck is the venue's immediate response to a placement.
type OrderAck struct {
	OrderID string
	Status  string
}

// OrderState is the venue's view of an order when polled.
type OrderState struct {
	OrderID     string
	Status      string
	FilledPrice float64
	FilledQty   int64
	FilledAt    time.Time
}

// Account is the venue-side account snapshot.
type Account struct {
	Cash        float64 `json:"cash"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
}

// Venue is the brokerage abstraction. Implementations must be safe for
// use from a single mutator goroutine; the pipeline serializes calls.
type Venue interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	GetOrder(ctx context.Context, orderID string) (OrderState, error)
	GetAccount(ctx context.Context) (Account, error)
	CancelAllOrders(ctx context.Context) error
}
