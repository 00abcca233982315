package orders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
)

// Repository stores orders in the orders collection of a docstore.
type Repository struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewRepository(store docstore.Store, logger *slog.Logger) *Repository {
	return &Repository{store: store, logger: logger}
}

// errIDTaken is returned by Create when another process already used the id.
var errIDTaken = errors.New("order id taken")

func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	err := docstore.CreateJSON(ctx, r.store, docstore.CollectionOrders, order.ID, order)
	if errors.Is(err, docstore.ErrExists) {
		return errIDTaken
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "could not create order", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := docstore.GetJSON(ctx, r.store, docstore.CollectionOrders, id, &order)
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidKey):
		return nil, apperr.New(apperr.KindNotFound, "order not found")
	case errors.Is(err, docstore.ErrCorruptRecord):
		return nil, apperr.Wrap(apperr.KindCorruptRecord, "corrupt order record", err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindStorage, "could not read order", err)
	}
	return &order, nil
}

func (r *Repository) Save(ctx context.Context, order *domain.Order) error {
	if err := docstore.PutJSON(ctx, r.store, docstore.CollectionOrders, order.ID, order); err != nil {
		return apperr.Wrap(apperr.KindStorage, "could not save order", err)
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	err := r.store.Remove(ctx, docstore.CollectionOrders, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidKey):
		return apperr.New(apperr.KindNotFound, "order not found")
	case err != nil:
		return apperr.Wrap(apperr.KindStorage, "could not delete order", err)
	}
	return nil
}

// ListByOwner scans every order and returns those placed by email.
func (r *Repository) ListByOwner(ctx context.Context, email string) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	err := r.scan(ctx, func(order *domain.Order) error {
		if order.Email == email {
			orders = append(orders, *order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// RemoveByOwner deletes every order placed by email, whether or not it is
// listed on the user record, and returns how many were removed.
func (r *Repository) RemoveByOwner(ctx context.Context, email string) (int, error) {
	removed := 0
	err := r.scan(ctx, func(order *domain.Order) error {
		if order.Email != email {
			return nil
		}
		err := r.Remove(ctx, order.ID)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// scan visits every readable order. Orders removed during the scan are
// skipped, and so are corrupt records: their owner cannot be read, and one bad
// document must not hide every other user's orders.
func (r *Repository) scan(ctx context.Context, fn func(*domain.Order) error) error {
	keys, err := r.store.ListKeys(ctx, docstore.CollectionOrders)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "could not list orders", err)
	}

	for _, key := range keys {
		order, err := r.Get(ctx, key)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			continue
		case apperr.Is(err, apperr.KindCorruptRecord):
			r.logger.Warn("skipping corrupt order record", "order_id", key, "error", err)
			continue
		case err != nil:
			return err
		}
		if err := fn(order); err != nil {
			return err
		}
	}
	return nil
}
