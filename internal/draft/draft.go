// Package draft persists the live cart to a local slot so an accidental
// restart does not lose it, and offers the saved copy back at startup.
// A draft is never applied to the live cart without an explicit restore.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/kv"
)

const (
	DefaultKey          = "pos_draft_cart"
	DefaultSaveInterval = 30 * time.Second
	DefaultMaxAge       = 24 * time.Hour
)

// Source is the cart state a draft is taken from.
type Source interface {
	Snapshot() domain.CartSnapshot
}

type Option func(*Keeper)

func WithKey(key string) Option {
	return func(k *Keeper) {
		if key != "" {
			k.key = key
		}
	}
}

func WithMaxAge(maxAge time.Duration) Option {
	return func(k *Keeper) {
		if maxAge > 0 {
			k.maxAge = maxAge
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(k *Keeper) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// Keeper owns the draft slot. Save and Invalidate are serialized, so an
// invalidation issued after the cart was cleared is never overwritten by an
// older save.
type Keeper struct {
	mu     sync.Mutex
	slot   kv.Slot
	key    string
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewKeeper(slot kv.Slot, opts ...Option) *Keeper {
	k := &Keeper{
		slot:   slot,
		key:    DefaultKey,
		maxAge: DefaultMaxAge,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.Named("draft")
	return k
}

// Save writes the current state of src over any prior record. An empty cart
// is not saved. It reports whether a record was written.
func (k *Keeper) Save(ctx context.Context, src Source) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	snapshot := src.Snapshot()
	if snapshot.IsEmpty() {
		return false, nil
	}

	payload, err := Encode(domain.NewDraftRecord(snapshot, k.now().UTC()))
	if err != nil {
		return false, err
	}
	if err := k.slot.Set(ctx, k.key, payload); err != nil {
		return false, fmt.Errorf("write draft: %w", err)
	}
	return true, nil
}

func (k *Keeper) Invalidate(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.slot.Delete(ctx, k.key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Check reports whether a restorable draft exists. Absent, unreadable and
// expired records all read as "nothing to offer".
func (k *Keeper) Check(ctx context.Context) (domain.DraftOffer, bool) {
	record, ok := k.Load(ctx)
	if !ok {
		return domain.DraftOffer{}, false
	}

	units := 0
	for _, line := range record.Lines {
		units += line.OrderedQuantity
	}
	return domain.DraftOffer{
		SavedAt:   record.SavedAt,
		AgeHours:  k.now().Sub(record.SavedAt).Hours(),
		LineCount: len(record.Lines),
		UnitCount: units,
	}, true
}

// Load returns the stored record when it is fresh and has at least one line.
func (k *Keeper) Load(ctx context.Context) (domain.DraftRecord, bool) {
	record, ok, err := k.Peek(ctx)
	if err != nil {
		k.logger.Warn("ignoring unreadable draft", zap.String("key", k.key), zap.Error(err))
		return domain.DraftRecord{}, false
	}
	if !ok {
		return domain.DraftRecord{}, false
	}
	if !k.Restorable(record) {
		k.logger.Debug("stored draft not offered",
			zap.Time("saved_at", record.SavedAt),
			zap.Int("lines", len(record.Lines)))
		return domain.DraftRecord{}, false
	}
	return record, true
}

// Peek returns whatever is stored, without the staleness gate.
func (k *Keeper) Peek(ctx context.Context) (domain.DraftRecord, bool, error) {
	raw, ok, err := k.slot.Get(ctx, k.key)
	if err != nil {
		return domain.DraftRecord{}, false, fmt.Errorf("read draft: %w", err)
	}
	if !ok {
		return domain.DraftRecord{}, false, nil
	}
	record, err := Decode(raw)
	if err != nil {
		return domain.DraftRecord{}, false, err
	}
	return record, true, nil
}

// Restorable applies the offer rule: younger than the max age and not empty.
func (k *Keeper) Restorable(record domain.DraftRecord) bool {
	if len(record.Lines) == 0 || record.SavedAt.IsZero() {
		return false
	}
	return k.now().Sub(record.SavedAt) < k.maxAge
}

func (k *Keeper) Key() string {
	return k.key
}

func Encode(record domain.DraftRecord) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return payload, nil
}

func Decode(raw []byte) (domain.DraftRecord, error) {
	var record domain.DraftRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.DraftRecord{}, fmt.Errorf("decode draft: %w", err)
	}
	return record, nil
}
