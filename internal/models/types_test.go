package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["a.jpg","b.jpg"]`)))
	assert.Equal(t, StringList{"a.jpg", "b.jpg"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)

	assert.Error(t, l.Scan([]byte(`{"not":"a list"}`)), "malformed column must not scan silently")
	assert.Error(t, l.Scan(42))
}

func TestStringListValueNilIsEmptyArray(t *testing.T) {
	var l StringList
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestProductEffectivePrice(t *testing.T) {
	price := decimal.NewFromInt(1500000)
	p := Product{Price: price}

	assert.False(t, p.HasActiveSale())
	assert.True(t, p.EffectivePrice().Equal(price))

	// Equal sale price is not a discount.
	equal := price
	p.SalePrice = &equal
	assert.False(t, p.HasActiveSale())
	assert.True(t, p.EffectivePrice().Equal(price))

	sale := decimal.NewFromInt(1200000)
	p.SalePrice = &sale
	assert.True(t, p.HasActiveSale())
	assert.True(t, p.EffectivePrice().Equal(sale))
}

func TestSyncErrorListScan(t *testing.T) {
	var l SyncErrorList
	require.NoError(t, l.Scan([]byte(`[{"row":3,"sku":"A-40","reason":"invalid price"}]`)))
	require.Len(t, l, 1)
	assert.Equal(t, 3, l[0].Row)
	assert.Equal(t, "A-40", l[0].SKU)

	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)
}
