package models

// Rating is the aggregate customer rating carried on a Product.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Product is immutable catalog reference data, loaded once per session.
// The recommendation pipeline never mutates it.
type Product struct {
	ID            string   `json:"id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	Category      string   `json:"category" validate:"required"`
	Subcategory   string   `json:"subcategory"`
	Brand         string   `json:"brand"`
	Price         float64  `json:"price" validate:"min=0"`
	OriginalPrice float64  `json:"original_price,omitempty"`
	InStock       bool     `json:"in_stock"`
	Features      []string `json:"features,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Rating        Rating   `json:"rating"`
}
