package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
)

type Token struct {
	Version int       `json:"version"`
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Expires time.Time `json:"expires"`
}

// ValidTokenID reports whether id has the canonical token format.
func ValidTokenID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func NewToken(id, email string, expires time.Time) (*Token, error) {
	if !ValidTokenID(id) {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid token id")
	}
	if !ValidEmail(email) {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid email")
	}
	return &Token{
		Version: RecordVersion,
		ID:      id,
		Email:   email,
		Expires: expires.UTC(),
	}, nil
}

func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}

func (t *Token) Validate() error {
	if t.Version != RecordVersion {
		return fmt.Errorf("unsupported token version %d", t.Version)
	}
	if t.ID == "" || t.Email == "" {
		return errors.New("token missing id or email")
	}
	return nil
}
