package model

import "time"

// Sale is the canonical record of one completed sale. Its ID equals ProductID;
// any other Sale carrying the same ProductID is a legacy duplicate.
type Sale struct {
	BaseModel
	ProductID   string     `gorm:"type:varchar(64);not null;index" json:"product_id"`
	ProductName string     `gorm:"type:varchar(255)" json:"product_name"`
	BuyPrice    float64    `gorm:"type:double precision;not null;default:0" json:"buy_price"`
	SoldPrice   float64    `gorm:"type:double precision;not null;default:0" json:"sold_price"`
	Profit      float64    `gorm:"type:double precision;not null;default:0" json:"profit"`
	SoldAt      *time.Time `gorm:"index" json:"sold_at"`
}

// IsCanonical reports whether the sale is keyed by its product id.
func (s *Sale) IsCanonical() bool {
	return s.ID == s.ProductID
}
