package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
)

// Item is a catalog entry. Price is in major currency units.
type Item struct {
	Version     int             `json:"version"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

func NewItem(id, name, description string, price decimal.Decimal) (*Item, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	switch {
	case id == "":
		return nil, apperr.New(apperr.KindInvalidRequest, "missing item id")
	case name == "":
		return nil, apperr.New(apperr.KindInvalidRequest, "missing item name")
	case !price.IsPositive():
		return nil, apperr.New(apperr.KindInvalidRequest, "item price must be positive")
	}
	return &Item{
		Version:     RecordVersion,
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		Price:       price,
	}, nil
}

func (i *Item) Validate() error {
	if i.Version != RecordVersion {
		return fmt.Errorf("unsupported item version %d", i.Version)
	}
	if i.ID == "" {
		return errors.New("item missing id")
	}
	return nil
}
