package models

// PricedItem is the item shape the challan endpoints accept.
type PricedItem struct {
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type ChallanRequest struct {
	CustomerName string       `json:"customerName"`
	ChallanNo    string       `json:"challanNo"`
	Items        []PricedItem `json:"items"`
}

type ChallanLine struct {
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

// ChallanSummary is everything a renderer needs to lay out the document. Keys
// follow ChallanRequest's camelCase.
type ChallanSummary struct {
	Company      string        `json:"company"`
	CustomerName string        `json:"customerName"`
	ChallanNo    string        `json:"challanNo"`
	Date         string        `json:"date"` // DD-MM-YYYY
	FileName     string        `json:"fileName"`
	Lines        []ChallanLine `json:"lines"`
	TotalItems   int           `json:"totalItems"`
	TotalPrice   float64       `json:"totalPrice"`
}
