// Package cart keeps the line items of an in-progress sale.
package cart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// DetachedPrefix marks line items rebuilt from history whose product no
// longer resolves. Such lines keep their stored name and price.
const DetachedPrefix = "~"

// ErrInvalidQty is returned when a quantity is not a positive integer.
var ErrInvalidQty = errors.New("quantity must be a positive integer")

// Item is a single cart line.
type Item struct {
	ProductID string `json:"product_id"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Qty       int    `json:"qty"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() int64 {
	return i.Price * int64(i.Qty)
}

// Linked reports whether the line references a live product.
func (i Item) Linked() bool {
	return i.ProductID != "" && !strings.HasPrefix(i.ProductID, DetachedPrefix)
}

// Cart is an ordered ledger of items, unique by ProductID.
type Cart struct {
	Items []Item `json:"items"`
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.Items)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Find returns the line for productID.
func (c *Cart) Find(productID string) (Item, bool) {
	if idx := c.index(productID); idx >= 0 {
		return c.Items[idx], true
	}
	return Item{}, false
}

// AddOrIncrement appends item with qty, or adds qty to the existing line for
// the same product. Price and name of an existing line are kept.
func (c *Cart) AddOrIncrement(item Item, qty int) error {
	if qty <= 0 {
		return ErrInvalidQty
	}
	if item.Price < 0 {
		return fmt.Errorf("negative price for product %s", item.ProductID)
	}
	if idx := c.index(item.ProductID); idx >= 0 {
		c.Items[idx].Qty += qty
		return nil
	}
	item.Qty = qty
	c.Items = append(c.Items, item)
	return nil
}

// Decrement lowers the quantity of productID by one, dropping the line at
// zero. Unknown products are ignored.
func (c *Cart) Decrement(productID string) {
	idx := c.index(productID)
	if idx < 0 {
		return
	}
	c.Items[idx].Qty--
	if c.Items[idx].Qty <= 0 {
		c.removeAt(idx)
	}
}

// Remove drops the line for productID regardless of quantity.
func (c *Cart) Remove(productID string) {
	if idx := c.index(productID); idx >= 0 {
		c.removeAt(idx)
	}
}

// Total sums every line total.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// Render formats one line per item and returns the grand total.
func (c *Cart) Render() ([]string, int64) {
	lines := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, fmt.Sprintf("%s × %d = %s", item.Name, item.Qty, FormatMoney(item.LineTotal())))
	}
	return lines, c.Total()
}

// Clone returns a deep copy.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// HistoryLine is a persisted order line used to rebuild a cart.
type HistoryLine struct {
	ProductID string
	Code      string
	Name      string
	Price     int64
	Qty       int
}

// FromHistory rebuilds a cart with the same product/price/qty triples as a
// past order. Lines without a product reference are kept under a detached id
// so the history is never dropped. Lines with a non-positive quantity or a
// negative price are kept with the value clamped to 1 and 0 respectively;
// the second result counts those lines.
func FromHistory(lines []HistoryLine) (Cart, int) {
	var c Cart
	adjusted := 0
	for i, line := range lines {
		id := line.ProductID
		if id == "" {
			id = DetachedPrefix + strconv.Itoa(i)
		}
		qty, price := line.Qty, line.Price
		if qty < 1 || price < 0 {
			adjusted++
			qty = max(qty, 1)
			price = max(price, 0)
		}
		// Cannot fail: qty and price are valid after clamping.
		_ = c.AddOrIncrement(Item{
			ProductID: id,
			Code:      line.Code,
			Name:      line.Name,
			Price:     price,
		}, qty)
	}
	return c, adjusted
}

// FormatMoney renders an amount in minor units as "$1,234.50".
func FormatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(minor/100), minor%100)
}

func (c *Cart) index(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}
