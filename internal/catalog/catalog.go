package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
)

//go:embed menu.json
var defaultMenu []byte

type Catalog struct {
	store  docstore.Store
	logger *slog.Logger
}

func New(store docstore.Store, logger *slog.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

// List loads every stored item. Any listing or decode failure makes the
// whole catalog unavailable.
func (c *Catalog) List(ctx context.Context) ([]domain.Item, error) {
	keys, err := c.store.ListKeys(ctx, docstore.CollectionItems)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalogUnavailable, "catalog unavailable", err)
	}

	items := make([]domain.Item, 0, len(keys))
	for _, key := range keys {
		var item domain.Item
		err := docstore.GetJSON(ctx, c.store, docstore.CollectionItems, key, &item)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindCatalogUnavailable, "catalog unavailable", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ByID returns nil without error when the item does not exist.
func (c *Catalog) ByID(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	err := docstore.GetJSON(ctx, c.store, docstore.CollectionItems, id, &item)
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidKey):
		return nil, nil
	case errors.Is(err, docstore.ErrCorruptRecord):
		return nil, apperr.Wrap(apperr.KindCorruptRecord, "corrupt catalog item", err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindCatalogUnavailable, "catalog unavailable", err)
	}
	return &item, nil
}

func (c *Catalog) PriceMap(ctx context.Context) (map[string]domain.Item, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]domain.Item, len(items))
	for _, item := range items {
		prices[item.ID] = item
	}
	return prices, nil
}

// Seed stores items whose id is not in the catalog yet and returns how many
// were added. Existing items are left untouched.
func (c *Catalog) Seed(ctx context.Context, items []domain.Item) (int, error) {
	added := 0
	for _, item := range items {
		err := docstore.CreateJSON(ctx, c.store, docstore.CollectionItems, item.ID, item)
		if errors.Is(err, docstore.ErrExists) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("seed item %s: %w", item.ID, err)
		}
		added++
	}
	c.logger.Info("catalog seeded", "added", added, "total", len(items))
	return added, nil
}

type menuEntry struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// LoadMenu parses a JSON array of menu entries into validated items.
func LoadMenu(r io.Reader) ([]domain.Item, error) {
	var entries []menuEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}

	items := make([]domain.Item, 0, len(entries))
	for _, e := range entries {
		item, err := domain.NewItem(e.ID, e.Name, e.Description, e.Price)
		if err != nil {
			return nil, fmt.Errorf("menu entry %q: %w", e.ID, err)
		}
		items = append(items, *item)
	}
	return items, nil
}

func DefaultMenu() ([]domain.Item, error) {
	return LoadMenu(bytes.NewReader(defaultMenu))
}
