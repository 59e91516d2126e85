package utils

import (
	"encoding/json"
	"fmt"
	"math"
)

// Cents is a money amount in integer minor units.
// It is stored as an integer column and rendered in JSON as a decimal in major units.
type Cents int64

// ToCents converts a major-unit amount to the nearest cent
func ToCents(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Float returns the amount in major units
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// Scale multiplies by ratio and rounds to the nearest cent
func (c Cents) Scale(ratio float64) Cents {
	return Cents(math.Round(float64(c) * ratio))
}

// String formats the amount as 12.30
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	var amount float64
	if err := json.Unmarshal(data, &amount); err != nil {
		return err
	}
	*c = ToCents(amount)
	return nil
}
