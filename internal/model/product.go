package model

import "time"

// Column names shared by Product, Sale and Owner documents. JSON tags use the
// same names so that a document can be addressed by field name in any store.
const (
	FieldID                 = "id"
	FieldCreatedAt          = "created_at"
	FieldUpdatedAt          = "updated_at"
	FieldName               = "name"
	FieldBuyPrice           = "buy_price"
	FieldSold               = "sold"
	FieldSoldPrice          = "sold_price"
	FieldLink               = "link"
	FieldDescription        = "description"
	FieldImageURL           = "image_url"
	FieldSoldAt             = "sold_at"
	FieldProductID          = "product_id"
	FieldProductName        = "product_name"
	FieldProfit             = "profit"
	FieldContributionAmount = "contribution_amount"
)

// Product is an inventory item. SoldPrice is non-nil whenever Sold is true and
// SoldAt is nil whenever Sold is false.
type Product struct {
	BaseModel
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	BuyPrice    float64    `gorm:"type:double precision;not null;default:0" json:"buy_price"`
	Sold        bool       `gorm:"not null;default:false;index" json:"sold"`
	SoldPrice   *float64   `gorm:"type:double precision" json:"sold_price"`
	Link        string     `gorm:"type:text" json:"link,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string     `gorm:"type:text" json:"image_url,omitempty"`
	SoldAt      *time.Time `json:"sold_at"`
}

// ProductEdit is the payload of a create or update request. NewImageURL is only
// applied when present; the image itself is uploaded elsewhere.
type ProductEdit struct {
	Name        string   `json:"name" validate:"required"`
	BuyPrice    float64  `json:"buy_price" validate:"finite,gte=0"`
	SoldPrice   *float64 `json:"sold_price" validate:"omitempty,finite,gte=0"`
	Sold        bool     `json:"sold"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	NewImageURL *string  `json:"new_image_url"`
}
