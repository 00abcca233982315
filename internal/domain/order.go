package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
)

// RecordVersion is the schema version written into every persisted record.
const RecordVersion = 1

var ErrAlreadyCompleted = errors.New("order already completed")

type Order struct {
	Version     int             `json:"version"`
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	CreatedOn   time.Time       `json:"createdOn"`
	CompletedOn *time.Time      `json:"completedOn"`
	PaymentInfo json.RawMessage `json:"paymentInfo"`
	Total       decimal.Decimal `json:"total"`
	Items       map[string]int  `json:"items"`
}

// NewOrder builds a pending order. Items must already be filtered against
// the catalog; quantities that are not positive are rejected.
func NewOrder(id, email string, items map[string]int, now time.Time) (*Order, error) {
	if id == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "missing order id")
	}
	if !ValidEmail(email) {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid email")
	}
	if len(items) == 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "order has no catalog items")
	}

	cp := make(map[string]int, len(items))
	for itemID, qty := range items {
		if qty <= 0 {
			return nil, apperr.New(apperr.KindInvalidRequest, fmt.Sprintf("invalid quantity for item %s", itemID))
		}
		cp[itemID] = qty
	}

	return &Order{
		Version:   RecordVersion,
		ID:        id,
		Email:     email,
		CreatedOn: now.UTC(),
		Total:     decimal.Zero,
		Items:     cp,
	}, nil
}

func (o *Order) Completed() bool {
	return o.CompletedOn != nil
}

// MarkCompleted stores the gateway receipt and the completion time. The stored
// time is never earlier than CreatedOn.
func (o *Order) MarkCompleted(paymentInfo []byte, at time.Time) error {
	if o.Completed() {
		return ErrAlreadyCompleted
	}
	at = at.UTC()
	if at.Before(o.CreatedOn) {
		at = o.CreatedOn
	}
	o.PaymentInfo = json.RawMessage(paymentInfo)
	o.CompletedOn = &at
	return nil
}

func (o *Order) Validate() error {
	if o.Version != RecordVersion {
		return fmt.Errorf("unsupported order version %d", o.Version)
	}
	if o.ID == "" || o.Email == "" {
		return errors.New("order missing id or email")
	}
	if o.Total.IsNegative() {
		return errors.New("order total is negative")
	}
	return nil
}
