package models

import "time"

// Draft is a challan being dictated: parsed items plus the prices the operator
// attaches afterwards. Prices[i] belongs to Items[i].
type Draft struct {
	DraftID    string    `json:"draft_id"` // uuid v4
	Transcript string    `json:"transcript"`
	Items      []Item    `json:"items"`
	Prices     []float64 `json:"prices"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PricedItems zips items with their prices.
func (d *Draft) PricedItems() []PricedItem {
	out := make([]PricedItem, 0, len(d.Items))
	for i, it := range d.Items {
		var price float64
		if i < len(d.Prices) {
			price = d.Prices[i]
		}
		out = append(out, PricedItem{Quantity: it.Quantity, Description: it.Description, Price: price})
	}
	return out
}
