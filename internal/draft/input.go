package draft

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/MrWong99/salesnote/internal/amount"
)

// Input is a numeric field as typed by the user. Anything that does not
// parse as a non-negative number counts as 0; invalid input is never an
// error.
type Input string

// Value returns the coerced number.
func (in Input) Value() float64 {
	return amount.NonNegative(string(in))
}

// Blank reports whether nothing was entered.
func (in Input) Blank() bool {
	return strings.TrimSpace(string(in)) == ""
}

// UnmarshalJSON accepts a JSON number, a string or null.
func (in *Input) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*in = ""
		return nil
	}
	*in = Input(b)
	return nil
}

// ItemPatch changes some fields of a line item. Nil fields are left as
// they are. A blank DiscountPercent drops an explicit discount so it is
// derived from the catalog again.
type ItemPatch struct {
	ProductName     *string `json:"product_name,omitempty"`
	Quantity        *Input  `json:"quantity,omitempty"`
	UnitPrice       *Input  `json:"unit_price,omitempty"`
	DiscountPercent *Input  `json:"discount_percent,omitempty"`
}
