package greenops

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer is the locale-aware message printer for number formatting.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatNumber formats an integer with thousand separators.
// Example: FormatNumber(18248) returns "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat formats f with the given precision and thousand separators.
// Example: FormatFloat(1234.567, 2) returns "1,234.57".
func FormatFloat(f float64, precision int) string {
	if precision <= 0 {
		return FormatNumber(int64(math.Round(f)))
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", precision), f)
}

// FormatLarge abbreviates values of a million or more ("~1.5 billion"),
// otherwise it returns a comma-separated integer.
func FormatLarge(n float64) string {
	if n >= BillionThreshold {
		return fmt.Sprintf("~%.1f billion", n/BillionThreshold)
	}
	if n >= LargeNumberThreshold {
		return fmt.Sprintf("~%.1f million", n/LargeNumberThreshold)
	}
	return FormatNumber(int64(math.Round(n)))
}

// FormatMass renders a kilogram CO2e quantity, switching to tonnes at
// TonneDisplayThresholdKg. Example: FormatMass(800, 2) returns "800.00 kgCO2e".
func FormatMass(kg float64, precision int) string {
	if math.Abs(kg) >= TonneDisplayThresholdKg {
		return FormatFloat(kg/TonsToKg, precision) + " tCO2e"
	}
	return FormatFloat(kg, precision) + " " + CanonicalUnit
}
