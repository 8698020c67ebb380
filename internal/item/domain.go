// internal/item/domain.go
package item

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fields are the caller-controlled attributes of an inventory item.
type Fields struct {
	SKU                  string              `json:"sku"`
	RequiresShipping     *bool               `json:"requires_shipping"`
	Cost                 decimal.NullDecimal `json:"cost"`
	CountryCodeOfOrigin  *string             `json:"country_code_of_origin"`
	ProvinceCodeOfOrigin *string             `json:"province_code_of_origin"`
	Tracked              *bool               `json:"tracked"`
}

// Validate returns the problems with f keyed by field name, or nil.
func (f Fields) Validate() map[string]string {
	problems := map[string]string{}
	if f.SKU == "" {
		problems["sku"] = "must be provided"
	}
	if len(f.SKU) > 255 {
		problems["sku"] = "must not be more than 255 characters long"
	}
	if f.Cost.Valid && f.Cost.Decimal.IsNegative() {
		problems["cost"] = "must not be negative"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

// Item is a trackable stock-keeping unit identified by a caller-supplied id.
type Item struct {
	ID int64 `json:"id"`
	Fields
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
