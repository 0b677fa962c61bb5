package kv

import (
	"context"
	"encoding/json"

	"bizgrid.org/internal/obs"
)

// Store is the durable key-value port backing the state stores. Each store
// owns its keys exclusively; values are JSON documents.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// HydrationStatus reports how a durable key was loaded.
type HydrationStatus string

const (
	// HydrationAbsent means the key did not exist.
	HydrationAbsent HydrationStatus = "absent"
	// HydrationValid means the stored document parsed cleanly.
	HydrationValid HydrationStatus = "valid"
	// HydrationRecovered means the stored document was corrupt; the key was
	// cleared and the caller starts from empty state.
	HydrationRecovered HydrationStatus = "recovered"
)

// LoadJSON hydrates dst from the stored document under key. Corrupt JSON is
// never an error: the offending key is removed so the failure does not
// repeat, and HydrationRecovered is reported for logs and metrics. Storage
// read failures do propagate.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (HydrationStatus, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return HydrationAbsent, err
	}
	if !ok {
		return HydrationAbsent, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		obs.Log("warn", "durable state corrupt, resetting", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		_ = s.Remove(ctx, key)
		return HydrationRecovered, nil
	}
	return HydrationValid, nil
}

// SaveJSON writes src as the JSON document under key. Write failures
// propagate; masking them would silently lose state the caller believes was
// saved.
func SaveJSON(ctx context.Context, s Store, key string, src any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(data))
}
