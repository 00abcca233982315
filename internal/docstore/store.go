// Package docstore persists one JSON document per (collection, key).
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	CollectionUsers  = "users"
	CollectionTokens = "tokens"
	CollectionItems  = "items"
	CollectionOrders = "orders"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrExists        = errors.New("document already exists")
	ErrCorruptRecord = errors.New("corrupt record")
	ErrInvalidKey    = errors.New("invalid document key")
)

type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Put creates or overwrites the document.
	Put(ctx context.Context, collection, key string, value []byte) error
	// Create stores the document only if the key is free, else ErrExists.
	Create(ctx context.Context, collection, key string, value []byte) error
	// Remove returns ErrNotFound when the key is absent.
	Remove(ctx context.Context, collection, key string) error
	ListKeys(ctx context.Context, collection string) ([]string, error)
}

// Validator is implemented by records that can check themselves after decoding.
type Validator interface {
	Validate() error
}

func validateKey(collection, key string) error {
	for _, s := range []string{collection, key} {
		if s == "" || strings.ContainsAny(s, `/\`) || strings.HasPrefix(s, ".") || strings.ContainsRune(s, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}
	return nil
}

// GetJSON loads and decodes a document. Decode or validation failures are
// reported as ErrCorruptRecord.
func GetJSON(ctx context.Context, s Store, collection, key string, v any) error {
	data, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrCorruptRecord, collection, key, err)
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%w: %s/%s: %v", ErrCorruptRecord, collection, key, err)
		}
	}
	return nil
}

func PutJSON(ctx context.Context, s Store, collection, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Put(ctx, collection, key, data)
}

func CreateJSON(ctx context.Context, s Store, collection, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Create(ctx, collection, key, data)
}
