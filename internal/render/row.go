// internal/render/row.go
package render

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/merchkit/cartd/internal/core/domain"
)

// BuildRow produces the view node for one line item. The identity attribute
// is written exactly once here; every other part of the row may be patched,
// the identity never is. Output is deterministic for a given item so the
// full, partial and single-row strategies agree byte for byte.
func BuildRow(item domain.LineItem) (*Node, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("line item without id")
	}

	row := NewNode("li")
	row.SetAttr(AttrItemID, item.ID)
	row.SetAttr("class", "cart-row")

	if item.ImageRef != "" {
		img := NewNode("img")
		img.SetAttr("class", "cart-row-image")
		img.SetAttr("src", item.ImageRef)
		row.Append(img)
	}

	name := NewNode("span")
	name.SetAttr("class", "cart-row-name")
	name.Text = item.DisplayName
	row.Append(name)

	qty := NewNode("input")
	qty.SetAttr("class", "cart-row-qty")
	qty.SetAttr("type", "number")
	qty.SetAttr("value", strconv.Itoa(item.Quantity))
	if item.StockIsKnown() {
		qty.SetAttr("max", strconv.Itoa(item.Stock))
	}
	row.Append(qty)

	price := NewNode("span")
	price.SetAttr("class", "cart-row-price")
	price.Text = item.UnitPrice.StringFixed(2)
	row.Append(price)

	if item.StockState == domain.StockUnknown {
		badge := NewNode("span")
		badge.SetAttr("class", "cart-row-pending")
		badge.Text = "checking availability"
		row.Append(badge)
	} else if item.Stock == 0 {
		badge := NewNode("span")
		badge.SetAttr("class", "cart-row-soldout")
		badge.Text = "out of stock"
		row.Append(badge)
	}

	if len(item.Specs) > 0 {
		specs := NewNode("dl")
		specs.SetAttr("class", "cart-row-specs")
		keys := make([]string, 0, len(item.Specs))
		for k := range item.Specs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			dt := NewNode("dt")
			dt.Text = k
			dd := NewNode("dd")
			dd.Text = item.Specs[k]
			specs.Append(dt, dd)
		}
		row.Append(specs)
	}

	return row, nil
}
