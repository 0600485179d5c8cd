// Package credentials keeps the image API key in a single durable key-value
// slot. The slot backend is chosen at startup; the Store on top of it owns
// trimming and the empty-token rule.
package credentials

import (
	"context"
	"errors"
	"strings"
)

// SlotKey is the fixed name the API key is stored under in every backend.
const SlotKey = "image_api_key"

// ErrInvalidToken is returned by Set for empty or whitespace-only tokens.
var ErrInvalidToken = errors.New("api key is required")

// Slot is a durable single-value store.
type Slot interface {
	// Load returns the stored value and whether one exists.
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, value string) error
	// Delete removes the value. Deleting an absent value is not an error.
	Delete(ctx context.Context) error
}

type Store struct {
	slot Slot
}

func NewStore(slot Slot) *Store {
	return &Store{slot: slot}
}

// Get returns the stored token, trimmed. ok is false when nothing usable is
// stored.
func (s *Store) Get(ctx context.Context) (token string, ok bool, err error) {
	value, found, err := s.slot.Load(ctx)
	if err != nil {
		return "", false, err
	}
	value = strings.TrimSpace(value)
	if !found || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	return s.slot.Save(ctx, token)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.slot.Delete(ctx)
}
