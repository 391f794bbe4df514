package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the delivery address snapshot persisted as JSONB on orders, saved addresses and
// subscriptions.
type Address struct {
	FullName string          `json:"full_name"`
	Line1    string          `json:"line1"`
	Line2    string          `json:"line2,omitempty"`
	City     string          `json:"city"`
	State    string          `json:"state"`
	Pincode  string          `json:"pincode"`
	Country  string          `json:"country"`
	Phone    string          `json:"phone,omitempty"`
	Location *GeographyPoint `json:"location,omitempty"`
}

// Validate enforces the fields required for a deliverable address.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return fmt.Errorf("address: missing line1")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	case strings.TrimSpace(a.Pincode) == "":
		return fmt.Errorf("address: missing pincode")
	}
	if a.Location != nil {
		if err := a.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Value marshals the address into JSON for Postgres.
func (a Address) Value() (driver.Value, error) {
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the address.
func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*a = Address{}
		return nil
	}
	return json.Unmarshal(raw, a)
}
