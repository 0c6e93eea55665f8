package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/me/servicehub/pkg/model"
)

// MirrorKey is the local storage key of the persisted session mirror.
const MirrorKey = "auth-storage"

// Mirror is the persisted subset of the session.
type Mirror struct {
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// Persister loads and saves the session mirror. Load returns nil, nil when
// nothing was persisted.
type Persister interface {
	Load(ctx context.Context) (*Mirror, error)
	Save(ctx context.Context, m Mirror) error
	Clear(ctx context.Context) error
}

// ItemStore is a string key/value store such as the local state database.
type ItemStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// ItemPersister keeps the mirror as JSON under MirrorKey.
type ItemPersister struct {
	items ItemStore
}

// NewItemPersister returns a Persister over items.
func NewItemPersister(items ItemStore) *ItemPersister {
	return &ItemPersister{items: items}
}

func (p *ItemPersister) Load(ctx context.Context) (*Mirror, error) {
	raw, ok, err := p.items.GetItem(ctx, MirrorKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MirrorKey, err)
	}
	if !ok {
		return nil, nil
	}
	var m Mirror
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MirrorKey, err)
	}
	return &m, nil
}

func (p *ItemPersister) Save(ctx context.Context, m Mirror) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", MirrorKey, err)
	}
	return p.items.SetItem(ctx, MirrorKey, string(data))
}

func (p *ItemPersister) Clear(ctx context.Context) error {
	return p.items.RemoveItem(ctx, MirrorKey)
}
