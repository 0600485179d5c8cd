package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studio/internal/storage"
)

type fileDocument struct {
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileSlot stores the value as a small JSON document under the file store.
type FileSlot struct {
	store *storage.FileStore
	key   string
}

func NewFileSlot(store *storage.FileStore) *FileSlot {
	return &FileSlot{store: store, key: SlotKey + ".json"}
}

func (f *FileSlot) Load(ctx context.Context) (string, bool, error) {
	raw, err := f.store.Read(ctx, f.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false, fmt.Errorf("credentials: decode %s: %w", f.key, err)
	}
	return doc.Token, true, nil
}

func (f *FileSlot) Save(ctx context.Context, value string) error {
	raw, err := json.Marshal(fileDocument{Token: value, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = f.store.Write(ctx, f.key, raw)
	return err
}

func (f *FileSlot) Delete(ctx context.Context) error {
	return f.store.Delete(ctx, f.key)
}
