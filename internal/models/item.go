package models

// Item is one line of a challan as recognised from a spoken transcript.
type Item struct {
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

type ParseResult struct {
	Items    []Item `json:"items"`
	Segments int    `json:"segments"` // comma-delimited segments seen
	Skipped  int    `json:"skipped"`  // segments without a quantity or description
}
