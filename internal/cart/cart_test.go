package cart

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
)

func product(id string, price string) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price)}
}

func TestAddLineIncrementsExistingLine(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 1)
	c.AddLine(product("b", "5"), 2)
	c.AddLine(product("a", "10"), 3)

	snap := c.Snapshot()
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "a", snap.Lines[0].Product.ID)
	assert.Equal(t, 4, snap.Lines[0].OrderedQuantity)
	assert.Equal(t, 0, snap.Lines[0].GiftQuantity)
	assert.Equal(t, "b", snap.Lines[1].Product.ID)
}

func TestAddLineIgnoresNonPositiveQuantity(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 0)
	c.AddLine(product("a", "10"), -2)
	assert.True(t, c.IsEmpty())
}

func TestAddLineFixesUnitPriceAtCreation(t *testing.T) {
	p := product("a", "100")
	p.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString("80"))

	c := New()
	c.AddLine(p, 1)

	changed := p
	changed.SalePrice = decimal.NullDecimal{}
	changed.Price = decimal.RequireFromString("500")
	c.AddLine(changed, 1)

	line, ok := c.Line("a")
	require.True(t, ok)
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("80")))
	assert.Equal(t, 2, line.OrderedQuantity)
}

func TestZeroSalePriceFallsBackToBasePrice(t *testing.T) {
	p := product("a", "100")
	p.SalePrice = decimal.NewNullDecimal(decimal.Zero)

	c := New()
	c.AddLine(p, 1)
	line, _ := c.Line("a")
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("100")))
}

func TestSetQuantityClampsGiftDown(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 5)
	c.SetGiftQuantity("a", 4)

	c.SetQuantity("a", 1)

	line, ok := c.Line("a")
	require.True(t, ok)
	assert.Equal(t, 1, line.OrderedQuantity)
	assert.Equal(t, 1, line.GiftQuantity)
}

func TestSetQuantityNonPositiveRemovesLine(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 2)
	c.AddLine(product("b", "10"), 2)

	c.SetQuantity("a", 0)
	c.SetQuantity("b", -3)
	assert.True(t, c.IsEmpty())
}

func TestMissingProductIsANoOp(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 2)
	before := c.Snapshot()

	c.SetQuantity("zzz", 4)
	c.SetGiftQuantity("zzz", 1)
	c.SetGiftReason("zzz", "promo")
	c.RemoveLine("zzz")
	c.RemoveLine("zzz")

	assert.Equal(t, before, c.Snapshot())
}

func TestSetGiftQuantityClamps(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 3)

	c.SetGiftQuantity("a", 10)
	line, _ := c.Line("a")
	assert.Equal(t, 3, line.GiftQuantity)

	c.SetGiftQuantity("a", -1)
	line, _ = c.Line("a")
	assert.Equal(t, 0, line.GiftQuantity)
}

func TestGiftInvariantHoldsAcrossSequences(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 1)

	ops := []struct {
		qty  int
		gift int
	}{{5, 5}, {2, 9}, {7, 3}, {1, 1}, {4, -2}, {3, 3}, {2, 0}, {6, 6}, {1, 0}}
	for _, op := range ops {
		c.SetGiftQuantity("a", op.gift)
		c.SetQuantity("a", op.qty)
		line, ok := c.Line("a")
		require.True(t, ok)
		assert.GreaterOrEqual(t, line.GiftQuantity, 0)
		assert.LessOrEqual(t, line.GiftQuantity, line.OrderedQuantity)
		assert.GreaterOrEqual(t, line.PaidQuantity(), 0)
	}
}

func TestSetGiftReasonIsVerbatim(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 1)
	c.SetGiftReason("a", "  loyalty  ")
	line, _ := c.Line("a")
	assert.Equal(t, "  loyalty  ", line.GiftReason)
}

func TestSetDiscountStoresRawValue(t *testing.T) {
	c := New()
	c.SetDiscount(decimal.RequireFromString("150"), domain.DiscountPercent)
	snap := c.Snapshot()
	assert.True(t, snap.DiscountValue.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, domain.DiscountPercent, snap.DiscountType)

	c.SetDiscount(decimal.RequireFromString("5"), domain.DiscountType("weird"))
	assert.Equal(t, domain.DiscountFixed, c.Snapshot().DiscountType)
}

func TestClearResetsEverything(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 1)
	c.SetCustomer("Mona", "0100")
	c.SetDiscount(decimal.RequireFromString("10"), domain.DiscountPercent)

	c.Clear()

	snap := c.Snapshot()
	assert.Empty(t, snap.Lines)
	assert.Empty(t, snap.CustomerName)
	assert.Empty(t, snap.CustomerPhone)
	assert.True(t, snap.DiscountValue.IsZero())
	assert.Equal(t, domain.DiscountFixed, snap.DiscountType)
}

func TestSnapshotIsDetached(t *testing.T) {
	c := New()
	c.AddLine(product("a", "10"), 1)
	snap := c.Snapshot()

	c.SetQuantity("a", 9)
	c.AddLine(product("b", "1"), 1)

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 1, snap.Lines[0].OrderedQuantity)
}

func TestRestoreSanitizesLines(t *testing.T) {
	c := New()
	c.Restore(domain.CartSnapshot{
		Lines: []domain.CartLine{
			{Product: product("a", "10"), OrderedQuantity: 2, GiftQuantity: 5, UnitPrice: decimal.NewFromInt(10)},
			{Product: product("b", "10"), OrderedQuantity: 0, UnitPrice: decimal.NewFromInt(10)},
			{Product: product("a", "10"), OrderedQuantity: 1, UnitPrice: decimal.NewFromInt(10)},
		},
		DiscountType: "",
	})

	snap := c.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 3, snap.Lines[0].OrderedQuantity)
	assert.Equal(t, 2, snap.Lines[0].GiftQuantity)
	assert.Equal(t, domain.DiscountFixed, snap.DiscountType)
}

func TestTransitionHookFiresOnEmptinessChange(t *testing.T) {
	var mu sync.Mutex
	var got []bool
	c := New(WithTransitionHook(func(empty bool) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, empty)
	}))

	c.AddLine(product("a", "10"), 1)
	c.AddLine(product("a", "10"), 1)
	c.SetQuantity("a", 5)
	c.RemoveLine("a")
	c.RemoveLine("a")
	c.AddLine(product("b", "10"), 1)
	c.Clear()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, false, true}, got)
}

func TestConcurrentMutationsKeepInvariants(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.AddLine(product("a", "10"), 1)
			c.SetGiftQuantity("a", i)
			c.SetQuantity("a", i%7)
			_ = c.Snapshot()
		}(i)
	}
	wg.Wait()

	if line, ok := c.Line("a"); ok {
		assert.LessOrEqual(t, line.GiftQuantity, line.OrderedQuantity)
		assert.GreaterOrEqual(t, line.OrderedQuantity, 1)
	}
}
