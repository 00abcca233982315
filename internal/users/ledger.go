package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/keylock"
)

// ItemLookup resolves catalog items; a nil item means the id is unknown.
type ItemLookup interface {
	ByID(ctx context.Context, id string) (*domain.Item, error)
}

// OrderRemover deletes order records owned by a user being deleted.
type OrderRemover interface {
	Remove(ctx context.Context, id string) error
	RemoveByOwner(ctx context.Context, email string) (int, error)
}

// TokenRevoker deletes the tokens bound to a user being deleted.
type TokenRevoker interface {
	RevokeByOwner(ctx context.Context, email string) (int, error)
}

// Ledger owns user records: profile, cart and the list of order ids.
type Ledger struct {
	store    docstore.Store
	items    ItemLookup
	orders   OrderRemover
	tokens   TokenRevoker
	locks    *keylock.Locker
	hashCost int
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Ledger)

func WithHashCost(cost int) Option {
	return func(l *Ledger) {
		l.hashCost = cost
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func NewLedger(store docstore.Store, items ItemLookup, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		items:    items,
		locks:    keylock.New(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetOrderRemover wires the order repository used by Delete. The order
// lifecycle depends on the ledger too, so this is set after construction.
func (l *Ledger) SetOrderRemover(orders OrderRemover) {
	l.orders = orders
}

// SetTokenRevoker wires the token store used by Delete. Token issuance checks
// passwords against the ledger, so this is set after construction.
func (l *Ledger) SetTokenRevoker(tokens TokenRevoker) {
	l.tokens = tokens
}

type CreateParams struct {
	Name         string
	Email        string
	Address      string
	Phone        string
	Password     string
	TOSAgreement bool
}

func (l *Ledger) Create(ctx context.Context, p CreateParams) (*domain.User, error) {
	if !p.TOSAgreement {
		return nil, apperr.New(apperr.KindInvalidRequest, "terms of service must be accepted")
	}
	if p.Password == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "missing password")
	}

	hashed, err := l.hash(p.Password)
	if err != nil {
		return nil, err
	}

	user, err := domain.NewUser(p.Name, p.Email, p.Address, p.Phone, hashed, l.now())
	if err != nil {
		return nil, err
	}

	err = docstore.CreateJSON(ctx, l.store, docstore.CollectionUsers, user.Email, user)
	if errors.Is(err, docstore.ErrExists) {
		return nil, apperr.New(apperr.KindConflict, "user already exists")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "could not create user", err)
	}

	l.logger.Info("user created", "email", user.Email)
	return user, nil
}

func (l *Ledger) Get(ctx context.Context, email string) (*domain.User, error) {
	if !domain.ValidEmail(email) {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid email")
	}

	var user domain.User
	err := docstore.GetJSON(ctx, l.store, docstore.CollectionUsers, email, &user)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	case errors.Is(err, docstore.ErrCorruptRecord):
		return nil, apperr.Wrap(apperr.KindCorruptRecord, "corrupt user record", err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindStorage, "could not read user", err)
	}
	return &user, nil
}

// CheckPassword returns NotFound for unknown users and Unauthorized for a
// wrong password.
func (l *Ledger) CheckPassword(ctx context.Context, email, password string) error {
	user, err := l.Get(ctx, email)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return apperr.New(apperr.KindUnauthorized, "wrong password")
	}
	return nil
}

// UpdateParams holds the optional profile fields; nil leaves a field as is.
type UpdateParams struct {
	Name     *string
	Address  *string
	Phone    *string
	Password *string
}

func (p UpdateParams) empty() bool {
	return p.Name == nil && p.Address == nil && p.Phone == nil && p.Password == nil
}

func (l *Ledger) Update(ctx context.Context, email string, p UpdateParams) (*domain.User, error) {
	if p.empty() {
		return nil, apperr.New(apperr.KindInvalidRequest, "no fields to update")
	}

	var hashed string
	if p.Password != nil {
		if *p.Password == "" {
			return nil, apperr.New(apperr.KindInvalidRequest, "missing password")
		}
		var err error
		if hashed, err = l.hash(*p.Password); err != nil {
			return nil, err
		}
	}

	return l.mutate(ctx, email, func(u *domain.User) error {
		name, address, phone := u.Name, u.Address, u.Phone
		if p.Name != nil {
			name = *p.Name
		}
		if p.Address != nil {
			address = *p.Address
		}
		if p.Phone != nil {
			phone = *p.Phone
		}
		if hashed == "" {
			hashed = u.HashedPassword
		}

		// Re-run the constructor so updated fields pass the same validation
		// as a new registration.
		next, err := domain.NewUser(name, u.Email, address, phone, hashed, u.CreatedAt)
		if err != nil {
			return err
		}
		u.Name, u.Address, u.Phone, u.HashedPassword = next.Name, next.Address, next.Phone, next.HashedPassword
		return nil
	})
}

// Delete removes the user, every order placed under the email and every
// token bound to it.
func (l *Ledger) Delete(ctx context.Context, email string) error {
	unlock, err := l.locks.Lock(ctx, email)
	if err != nil {
		return err
	}
	defer unlock()

	user, err := l.Get(ctx, email)
	if err != nil {
		return err
	}

	removed := 0
	if l.orders != nil {
		for _, id := range user.Orders {
			err := l.orders.Remove(ctx, id)
			if err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return err
			}
		}
		// Orders not on the list, such as one left behind by a crash mid
		// checkout, belong to the email all the same.
		if removed, err = l.orders.RemoveByOwner(ctx, email); err != nil {
			return err
		}
	}

	revoked := 0
	if l.tokens != nil {
		if revoked, err = l.tokens.RevokeByOwner(ctx, email); err != nil {
			return err
		}
	}

	err = l.store.Remove(ctx, docstore.CollectionUsers, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "could not delete user", err)
	}

	l.logger.Info("user deleted", "email", email, "orders", len(user.Orders)+removed, "tokens", revoked)
	return nil
}

// SetCartItem sets the cart quantity for one catalog item. A quantity of
// zero or less removes the item and does not consult the catalog.
func (l *Ledger) SetCartItem(ctx context.Context, email, itemID string, qty int) (*domain.User, error) {
	if itemID == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "missing item id")
	}

	if qty > 0 {
		item, err := l.items.ByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, apperr.New(apperr.KindNotFound, "item not found")
		}
	}

	return l.mutate(ctx, email, func(u *domain.User) error {
		u.SetCartQuantity(itemID, qty)
		return nil
	})
}

// RecordOrder appends orderID to the user's orders and removes the ordered
// lines from the cart. Cart edits made after ordered was read are kept.
func (l *Ledger) RecordOrder(ctx context.Context, email, orderID string, ordered map[string]int) (*domain.User, error) {
	return l.mutate(ctx, email, func(u *domain.User) error {
		u.AppendOrder(orderID)
		u.ClearOrdered(ordered)
		return nil
	})
}

func (l *Ledger) AppendOrder(ctx context.Context, email, orderID string) error {
	_, err := l.mutate(ctx, email, func(u *domain.User) error {
		u.AppendOrder(orderID)
		return nil
	})
	return err
}

func (l *Ledger) RemoveOrder(ctx context.Context, email, orderID string) error {
	_, err := l.mutate(ctx, email, func(u *domain.User) error {
		u.RemoveOrder(orderID)
		return nil
	})
	return err
}

// mutate runs a read-modify-write of one user record under the user's lock.
func (l *Ledger) mutate(ctx context.Context, email string, fn func(*domain.User) error) (*domain.User, error) {
	unlock, err := l.locks.Lock(ctx, email)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := l.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := fn(user); err != nil {
		return nil, err
	}

	if err := docstore.PutJSON(ctx, l.store, docstore.CollectionUsers, user.Email, user); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "could not update user", err)
	}
	return user, nil
}

func (l *Ledger) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), l.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.New(apperr.KindInvalidRequest, "password too long")
		}
		return "", apperr.Wrap(apperr.KindInternal, "could not hash password", err)
	}
	return string(hashed), nil
}
