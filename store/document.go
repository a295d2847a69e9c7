package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"quick-notes/db"
)

// decodeCollection accepts either {"<key>": [...]} or a bare array.
func decodeCollection[T any](body []byte, key string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty document")
	}

	var items []T
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	raw, ok := wrapper[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("missing %q array", key)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return items, nil
}

// loadCollection reads doc and decodes it. Anything unreadable resets to an
// empty collection with a warning.
func loadCollection[T any](ctx context.Context, doc db.Document, key string, log logrus.FieldLogger) []T {
	body, err := doc.Load(ctx)
	if errors.Is(err, db.ErrNoDocument) {
		return []T{}
	}
	if err != nil {
		log.WithError(err).Warn("could not read document, starting empty")
		return []T{}
	}

	items, err := decodeCollection[T](body, key)
	if err != nil {
		log.WithError(err).Warn("document format unexpected, resetting")
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

func encodeCollection(key string, items any) ([]byte, error) {
	return json.MarshalIndent(map[string]any{key: items}, "", "  ")
}
