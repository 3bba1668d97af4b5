package draft

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kasirpos/backend/internal/cart"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/kv"
)

type fixedClock struct {
	at time.Time
}

func (c *fixedClock) Now() time.Time { return c.at }

func filledCart() *cart.Cart {
	c := cart.New()
	c.AddLine(domain.Product{ID: "6f1c0d8e-0d7b-4a4e-9d35-8b4f2c6e1a01", Name: "Tea", Price: decimal.RequireFromString("12.50")}, 3)
	c.AddLine(domain.Product{ID: "manual-abc", Name: "Bag", Price: decimal.RequireFromString("1.25")}, 1)
	c.SetGiftQuantity("6f1c0d8e-0d7b-4a4e-9d35-8b4f2c6e1a01", 1)
	c.SetGiftReason("6f1c0d8e-0d7b-4a4e-9d35-8b4f2c6e1a01", "loyal customer")
	c.SetCustomer("Mona", "0100 123")
	c.SetDiscount(decimal.RequireFromString("7.5"), domain.DiscountPercent)
	return c
}

func assertSameCart(t *testing.T, want, got domain.CartSnapshot) {
	t.Helper()
	require.Len(t, got.Lines, len(want.Lines))
	for i := range want.Lines {
		w, g := want.Lines[i], got.Lines[i]
		assert.Equal(t, w.Product.ID, g.Product.ID)
		assert.Equal(t, w.Product.Name, g.Product.Name)
		assert.True(t, w.Product.Price.Equal(g.Product.Price))
		assert.Equal(t, w.OrderedQuantity, g.OrderedQuantity)
		assert.Equal(t, w.GiftQuantity, g.GiftQuantity)
		assert.Equal(t, w.GiftReason, g.GiftReason)
		assert.True(t, w.UnitPrice.Equal(g.UnitPrice))
	}
	assert.Equal(t, want.CustomerName, got.CustomerName)
	assert.Equal(t, want.CustomerPhone, got.CustomerPhone)
	assert.True(t, want.DiscountValue.Equal(got.DiscountValue))
	assert.Equal(t, want.DiscountType, got.DiscountType)
}

func TestSaveAndManualRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()
	keeper := NewKeeper(slot)
	source := filledCart()

	saved, err := keeper.Save(ctx, source)
	require.NoError(t, err)
	require.True(t, saved)

	record, ok := keeper.Load(ctx)
	require.True(t, ok)

	restored := cart.New()
	restored.Restore(record.Snapshot())
	assertSameCart(t, source.Snapshot(), restored.Snapshot())
}

func TestSaveSkipsEmptyCart(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()
	keeper := NewKeeper(slot)

	saved, err := keeper.Save(ctx, cart.New())
	require.NoError(t, err)
	assert.False(t, saved)

	_, ok, err := slot.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDraftOfferRespectsMaxAge(t *testing.T) {
	cases := []struct {
		name    string
		age     time.Duration
		offered bool
	}{
		{"23 hours old", 23 * time.Hour, true},
		{"25 hours old", 25 * time.Hour, false},
		{"exactly 24 hours", 24 * time.Hour, false},
		{"fresh", time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fixedClock{at: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
			keeper := NewKeeper(kv.NewMemory(), WithClock(clock.Now))

			_, err := keeper.Save(ctx, filledCart())
			require.NoError(t, err)

			clock.at = clock.at.Add(tc.age)
			offer, ok := keeper.Check(ctx)
			assert.Equal(t, tc.offered, ok)
			if ok {
				assert.InDelta(t, tc.age.Hours(), offer.AgeHours, 0.0001)
				assert.Equal(t, 2, offer.LineCount)
				assert.Equal(t, 4, offer.UnitCount)
			}
		})
	}
}

func TestRecordWithoutLinesIsNotOffered(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()
	payload, err := Encode(domain.DraftRecord{SavedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, slot.Set(ctx, DefaultKey, payload))

	_, ok := NewKeeper(slot).Check(ctx)
	assert.False(t, ok)
}

func TestCorruptDraftIsSilentlyIgnored(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()
	require.NoError(t, slot.Set(ctx, DefaultKey, []byte("{not json")))

	core, logs := observer.New(zapcore.WarnLevel)
	keeper := NewKeeper(slot, WithLogger(zap.New(core)))

	_, ok := keeper.Check(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("ignoring unreadable draft").Len())

	_, _, err := keeper.Peek(ctx)
	assert.Error(t, err)
}

func TestInvalidateRemovesRecord(t *testing.T) {
	ctx := context.Background()
	keeper := NewKeeper(kv.NewMemory(), WithKey("terminal-1"))

	_, err := keeper.Save(ctx, filledCart())
	require.NoError(t, err)
	require.NoError(t, keeper.Invalidate(ctx))
	require.NoError(t, keeper.Invalidate(ctx))

	_, ok := keeper.Check(ctx)
	assert.False(t, ok)
}

func TestSaveAfterClearAndInvalidateDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	keeper := NewKeeper(kv.NewMemory())
	c := filledCart()

	_, err := keeper.Save(ctx, c)
	require.NoError(t, err)

	c.Clear()
	require.NoError(t, keeper.Invalidate(ctx))

	saved, err := keeper.Save(ctx, c)
	require.NoError(t, err)
	assert.False(t, saved)
	_, ok := keeper.Check(ctx)
	assert.False(t, ok)
}
