package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/supplycatalog/ingestion/internal/catalog"
)

func item(price string, inStock bool) catalog.SupplierItem {
	return catalog.SupplierItem{CurrentPrice: decimal.RequireFromString(price), InStock: inStock}
}

func TestComputeAggregatesPicksLowestPriceAcrossAllItemsRegardlessOfStock(t *testing.T) {
	items := []catalog.SupplierItem{
		item("19.99", true),
		item("9.99", true),
		item("5.00", false),
	}
	min, availability := computeAggregates(items)
	assert.True(t, availability)
	assert.True(t, min.Equal(decimal.RequireFromString("5.00")))
}

func TestComputeAggregatesUnavailableWhenNoneInStockButMinStillSet(t *testing.T) {
	items := []catalog.SupplierItem{
		item("9.99", false),
		item("4.99", false),
	}
	min, availability := computeAggregates(items)
	assert.False(t, availability)
	assert.True(t, min.Equal(decimal.RequireFromString("4.99")))
}

func TestComputeAggregatesHandlesNoLinkedItems(t *testing.T) {
	min, availability := computeAggregates(nil)
	assert.False(t, availability)
	assert.Nil(t, min)
}
