package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	widgetA = Item{ProductID: "A", Name: "Alfa", Price: 200}
	widgetB = Item{ProductID: "B", Name: "Beta", Price: 500}
)

func TestDecrementScenario(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddOrIncrement(widgetA, 2))
	require.NoError(t, c.AddOrIncrement(widgetB, 1))

	c.Decrement("A")
	require.Len(t, c.Items, 2)
	assert.Equal(t, 1, c.Items[0].Qty)
	assert.Equal(t, int64(700), c.Total())

	c.Decrement("A")
	require.Len(t, c.Items, 1)
	assert.Equal(t, "B", c.Items[0].ProductID)
	assert.Equal(t, int64(500), c.Total())
}

func TestAddSameProductIncrements(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddOrIncrement(widgetA, 2))
	require.NoError(t, c.AddOrIncrement(widgetA, 3))
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Qty)
}

func TestAddRejectsInvalidQty(t *testing.T) {
	var c Cart
	assert.ErrorIs(t, c.AddOrIncrement(widgetA, 0), ErrInvalidQty)
	assert.ErrorIs(t, c.AddOrIncrement(widgetA, -1), ErrInvalidQty)
	assert.True(t, c.Empty())
}

func TestDecrementAndRemoveUnknownAreNoops(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddOrIncrement(widgetA, 1))
	c.Decrement("missing")
	c.Remove("missing")
	assert.Equal(t, 1, c.Len())
}

func TestTotalMatchesLedgerAcrossOperations(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddOrIncrement(widgetA, 3))
	require.NoError(t, c.AddOrIncrement(widgetB, 2))
	c.Remove("A")
	c.Decrement("B")
	c.Decrement("B")
	assert.True(t, c.Empty())
	assert.Equal(t, int64(0), c.Total())

	require.NoError(t, c.AddOrIncrement(widgetA, 4))
	require.NoError(t, c.AddOrIncrement(widgetB, 1))

	var want int64
	for _, item := range c.Items {
		want += item.Price * int64(item.Qty)
	}
	_, total := c.Render()
	assert.Equal(t, want, total)
	assert.Equal(t, int64(1300), total)
}

func TestRenderLines(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddOrIncrement(widgetA, 2))
	require.NoError(t, c.AddOrIncrement(Item{ProductID: "C", Name: "Caja", Price: 150000}, 1))
	lines, total := c.Render()
	assert.Equal(t, []string{"Alfa × 2 = $4.00", "Caja × 1 = $1,500.00"}, lines)
	assert.Equal(t, int64(150400), total)
}

func TestFromHistory(t *testing.T) {
	c, adjusted := FromHistory([]HistoryLine{{ProductID: "P1", Name: "Widget", Price: 300, Qty: 4}})
	assert.Zero(t, adjusted)
	require.Len(t, c.Items, 1)
	assert.Equal(t, Item{ProductID: "P1", Name: "Widget", Price: 300, Qty: 4}, c.Items[0])
	_, total := c.Render()
	assert.Equal(t, int64(1200), total)
}

func TestFromHistoryKeepsUnlinkedLines(t *testing.T) {
	c, _ := FromHistory([]HistoryLine{
		{Name: "Descontinuado", Price: 100, Qty: 1},
		{Name: "Otro viejo", Price: 250, Qty: 2},
		{ProductID: "P2", Name: "Vigente", Price: 50, Qty: 3},
	})
	require.Len(t, c.Items, 3)
	assert.False(t, c.Items[0].Linked())
	assert.False(t, c.Items[1].Linked())
	assert.True(t, c.Items[2].Linked())
	assert.NotEqual(t, c.Items[0].ProductID, c.Items[1].ProductID)
	assert.Equal(t, int64(750), c.Total())
}

func TestFromHistoryClampsInvalidLines(t *testing.T) {
	c, adjusted := FromHistory([]HistoryLine{
		{ProductID: "P1", Name: "Cero", Price: 100, Qty: 0},
		{ProductID: "P2", Name: "Negativo", Price: -50, Qty: 2},
		{ProductID: "P3", Name: "Normal", Price: 10, Qty: 3},
	})
	assert.Equal(t, 2, adjusted)
	require.Len(t, c.Items, 3)
	assert.Equal(t, 1, c.Items[0].Qty)
	assert.Equal(t, int64(100), c.Items[0].Price)
	assert.Equal(t, int64(0), c.Items[1].Price)
	assert.Equal(t, 2, c.Items[1].Qty)
	assert.Equal(t, int64(130), c.Total())
}

func TestCloneIsIndependent(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddOrIncrement(widgetA, 1))
	cp := c.Clone()
	cp.Decrement("A")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, cp.Len())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", FormatMoney(0))
	assert.Equal(t, "$12.00", FormatMoney(1200))
	assert.Equal(t, "$1,234,567.05", FormatMoney(123456705))
	assert.Equal(t, "-$3.50", FormatMoney(-350))
}
