// Package stats turns message history and departure records into
// labelled counts and renders them as bar chart images.
package stats

import (
	"fmt"
	"math"
	"strconv"
)

// AmountOfTime formats a quantity of some time unit for display.
// A value of (or rounding to) 1 yields the bare unit, integral values
// yield "{n} {unit}s", anything else rounds to two decimal places
// without trailing zeros.
func AmountOfTime(value float64, unit string) string {
	rounded := math.Round(value*100) / 100
	if rounded == 1 {
		return unit
	}
	if rounded == math.Trunc(rounded) {
		return fmt.Sprintf("%d %ss", int64(rounded), unit)
	}
	return fmt.Sprintf("%s %ss", strconv.FormatFloat(rounded, 'f', -1, 64), unit)
}
