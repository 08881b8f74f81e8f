package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownOrder is returned when polling an order id the venue has never
// seen.
var ErrUnknownOrder = errors.New("execution: unknown order id")

// SimVenue fills every order instantly at the supplied reference price.
// It tracks cash so the simulated account reflects executed trades.
type SimVenue struct {
	mu     sync.Mutex
	cash   float64
	orders map[string]OrderState
}

func NewSimVenue(startingCash float64) *SimVenue {
	return &SimVenue{
		cash:   startingCash,
		orders: make(map[string]OrderState),
	}
}

func (v *SimVenue) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if req.Quantity <= 0 {
		return OrderAck{}, fmt.Errorf("sim venue: invalid quantity %d", req.Quantity)
	}
	if req.Price <= 0 {
		return OrderAck{}, fmt.Errorf("sim venue: reference price required for %s", req.Symbol)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	id := "sim-" + uuid.NewString()
	v.orders[id] = OrderState{
		OrderID:     id,
		Status:      OrderStatusFilled,
		FilledPrice: req.Price,
		FilledQty:   req.Quantity,
		FilledAt:    time.Now().UTC(),
	}

	value := float64(req.Quantity) * req.Price
	if req.Side == SideBuy {
		v.cash -= value
	} else {
		v.cash += value
	}

	return OrderAck{OrderID: id, Status: OrderStatusFilled}, nil
}

func (v *SimVenue) GetOrder(ctx context.Context, orderID string) (OrderState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.orders[orderID]
	if !ok {
		return OrderState{}, ErrUnknownOrder
	}
	return state, nil
}

func (v *SimVenue) GetAccount(ctx context.Context) (Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	// Equity tracking of open positions lives in the position book, not
	// here; the sim account reports cash on all three fields.
	return Account{Cash: v.cash, Equity: v.cash, BuyingPower: v.cash}, nil
}

func (v *SimVenue) CancelAllOrders(ctx context.Context) error {
	// Simulated orders fill instantly; nothing is ever resting.
	return nil
}
