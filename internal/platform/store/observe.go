package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are persisted as JSON numbers, the shape the local-storage
	// records already use.
	decimal.MarshalJSONWithoutQuotes = true
}

// Observed wraps a Store and calls onConflict for every write rejected by
// the version check.
type Observed struct {
	Store
	onConflict func(key string)
}

func Observe(s Store, onConflict func(key string)) *Observed {
	return &Observed{Store: s, onConflict: onConflict}
}

func (o *Observed) Put(ctx context.Context, key string, data json.RawMessage, expectVersion int64) (int64, error) {
	v, err := o.Store.Put(ctx, key, data, expectVersion)
	if errors.Is(err, ErrVersionConflict) && o.onConflict != nil {
		o.onConflict(key)
	}
	return v, err
}
