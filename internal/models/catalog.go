package models

// Category is a top-level catalog grouping.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Subcategory struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

// Product is a catalog entry with one list price per storefront currency.
type Product struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	CategoryID     string   `json:"category_id"`
	SubcategoryID  string   `json:"subcategory_id,omitempty"`
	PricePrimary   int64    `json:"price_primary"`
	PriceSecondary int64    `json:"price_secondary"`
	Sizes          []string `json:"sizes,omitempty"`
	Images         []string `json:"images,omitempty"`
	Bestseller     bool     `json:"bestseller"`
}

// ProductSummary is the product view embedded in admin order details.
type ProductSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PricePrimary   int64  `json:"price_primary"`
	PriceSecondary int64  `json:"price_secondary"`
}

type ProductFilter struct {
	CategoryID    string
	SubcategoryID string
	Search        string
	Limit         int
	Offset        int
}
