package tokens

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
)

const DefaultTTL = time.Hour

// PasswordChecker validates a user's credentials for token issuance.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, email, password string) error
}

type Verifier struct {
	store  docstore.Store
	creds  PasswordChecker
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Verifier)

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(store docstore.Store, creds PasswordChecker, ttl time.Duration, logger *slog.Logger, opts ...Option) *Verifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	v := &Verifier{
		store:  store,
		creds:  creds,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) Issue(ctx context.Context, email, password string) (*domain.Token, error) {
	if !domain.ValidEmail(email) || password == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "missing email or password")
	}

	if err := v.creds.CheckPassword(ctx, email, password); err != nil {
		k := apperr.KindOf(err)
		if k == apperr.KindNotFound || k == apperr.KindUnauthorized {
			return nil, apperr.New(apperr.KindUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	token, err := domain.NewToken(uuid.NewString(), email, v.now().Add(v.ttl))
	if err != nil {
		return nil, err
	}

	if err := docstore.CreateJSON(ctx, v.store, docstore.CollectionTokens, token.ID, token); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "could not create token", err)
	}

	v.logger.Info("token issued", "email", email)
	return token, nil
}

func (v *Verifier) Get(ctx context.Context, id string) (*domain.Token, error) {
	if !domain.ValidTokenID(id) {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid token id")
	}

	var token domain.Token
	err := docstore.GetJSON(ctx, v.store, docstore.CollectionTokens, id, &token)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return nil, apperr.New(apperr.KindNotFound, "token not found")
	case errors.Is(err, docstore.ErrCorruptRecord):
		return nil, apperr.Wrap(apperr.KindCorruptRecord, "corrupt token record", err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindStorage, "could not read token", err)
	}
	return &token, nil
}

// Extend pushes the expiry of a live token to now+ttl. Expired tokens cannot
// be extended.
func (v *Verifier) Extend(ctx context.Context, id string) (*domain.Token, error) {
	token, err := v.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := v.now()
	if token.Expired(now) {
		return nil, apperr.New(apperr.KindInvalidRequest, "token expired and cannot be extended")
	}

	token.Expires = now.Add(v.ttl).UTC()
	if err := docstore.PutJSON(ctx, v.store, docstore.CollectionTokens, token.ID, token); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "could not extend token", err)
	}
	return token, nil
}

func (v *Verifier) Revoke(ctx context.Context, id string) error {
	if !domain.ValidTokenID(id) {
		return apperr.New(apperr.KindInvalidRequest, "invalid token id")
	}

	err := v.store.Remove(ctx, docstore.CollectionTokens, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "token not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "could not delete token", err)
	}
	return nil
}

// RevokeByOwner deletes every token bound to email and returns how many were
// removed. Unreadable token records are left for Verify to reject.
func (v *Verifier) RevokeByOwner(ctx context.Context, email string) (int, error) {
	ids, err := v.store.ListKeys(ctx, docstore.CollectionTokens)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorage, "could not list tokens", err)
	}

	revoked := 0
	for _, id := range ids {
		var token domain.Token
		err := docstore.GetJSON(ctx, v.store, docstore.CollectionTokens, id, &token)
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			continue
		case errors.Is(err, docstore.ErrCorruptRecord):
			v.logger.Warn("skipping corrupt token record", "error", err)
			continue
		case err != nil:
			return revoked, apperr.Wrap(apperr.KindStorage, "could not read token", err)
		}
		if token.Email != email {
			continue
		}

		err = v.store.Remove(ctx, docstore.CollectionTokens, id)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return revoked, apperr.Wrap(apperr.KindStorage, "could not delete token", err)
		}
		revoked++
	}
	if revoked > 0 {
		v.logger.Info("tokens revoked", "email", email, "count", revoked)
	}
	return revoked, nil
}

// Verify checks that id names a live token bound to email. An empty email
// accepts any owner. Expired tokens are removed as a side effect.
func (v *Verifier) Verify(ctx context.Context, id, email string) (*domain.Token, error) {
	if !domain.ValidTokenID(id) {
		return nil, apperr.New(apperr.KindUnauthorized, "missing or invalid token")
	}

	token, err := v.Get(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.New(apperr.KindUnauthorized, "missing or invalid token")
		}
		return nil, err
	}

	if token.Expired(v.now()) {
		if err := v.store.Remove(ctx, docstore.CollectionTokens, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			v.logger.Error("failed to delete expired token", "error", err)
		}
		return nil, apperr.New(apperr.KindUnauthorized, "token expired")
	}

	if email != "" && token.Email != email {
		return nil, apperr.New(apperr.KindUnauthorized, "token does not belong to this user")
	}

	return token, nil
}
