// internal/location/domain.go
package location

import "time"

// Fields are the caller-controlled attributes of a location.
type Fields struct {
	Name         string  `json:"name"`
	Address1     string  `json:"address1"`
	Address2     *string `json:"address2"`
	City         string  `json:"city"`
	Zip          string  `json:"zip"`
	Province     string  `json:"province"`
	Country      string  `json:"country"`
	Phone        *string `json:"phone"`
	ProvinceCode *string `json:"province_code"`
	CountryCode  *string `json:"country_code"`
	CountryName  *string `json:"country_name"`
}

// Validate returns the problems with f keyed by field name, or nil.
func (f Fields) Validate() map[string]string {
	problems := map[string]string{}
	if f.Address1 == "" {
		problems["address1"] = "must be provided"
	}
	if f.Country == "" {
		problems["country"] = "must be provided"
	}
	if len(f.Name) > 255 {
		problems["name"] = "must not be more than 255 characters long"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

// Location is a warehouse or store holding stock.
type Location struct {
	ID int64 `json:"id"`
	Fields
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
