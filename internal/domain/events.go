package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderCompleted = "order.completed"

type OrderCompletedEvent struct {
	OrderID     string          `json:"order_id"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	Items       map[string]int  `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CompletedOn time.Time       `json:"completed_on"`
}
