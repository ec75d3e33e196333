package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents the type of order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Order is a signal resolved to a whole-share quantity. Orders are internal
// to the portfolio; strategies only ever emit signals.
type Order struct {
	ID        int64
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  int64
	Timestamp time.Time

	// LimitPrice is set for limit orders only.
	LimitPrice decimal.Decimal

	// RiskPerShare carries the signal's risk sizing through to stop placement.
	RiskPerShare decimal.Decimal

	Strategy string
	Reason   string
}

// Fill is the executed outcome of an order. Quantity may be smaller than the
// order's if the buy was shrunk to fit available cash.
type Fill struct {
	ID        int64
	OrderID   int64
	Symbol    string
	Side      Side
	Quantity  int64
	Price     decimal.Decimal
	Timestamp time.Time

	Commission decimal.Decimal
	Slippage   decimal.Decimal

	// RealizedPL is the profit against average entry on closing fills; zero
	// on opening fills.
	RealizedPL decimal.Decimal

	// StopTriggered marks exits synthesized by the stop-loss sweep.
	StopTriggered bool
	// CashShrunk marks buys reduced below the requested size to fit cash.
	CashShrunk bool

	Strategy string
	Reason   string
}
