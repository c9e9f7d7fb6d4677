package greenops

// EPA greenhouse-gas equivalency divisors (2024 edition), in kg CO2e per unit:
//
//	equivalency = kg_CO2e / factor
const (
	// EPAMilesDrivenFactor is kg CO2e per mile for an average passenger vehicle.
	EPAMilesDrivenFactor = 0.192

	// EPASmartphoneChargeFactor is kg CO2e per smartphone full charge.
	EPASmartphoneChargeFactor = 0.00822

	// EPATreeSeedlingFactor is kg CO2e absorbed per tree seedling grown for 10 years.
	EPATreeSeedlingFactor = 60.0

	// EPAHomeDayFactor is kg CO2e per day of average US home electricity use.
	EPAHomeDayFactor = 18.3
)

// Mass conversions to kilograms.
const (
	GramsToKg  = 0.001
	KgToKg     = 1.0
	TonsToKg   = 1000.0
	PoundsToKg = 0.453592
)

// Display thresholds.
const (
	// MinEquivalencyThresholdKg is the smallest inventory for which equivalencies are shown.
	MinEquivalencyThresholdKg = 1.0

	// TonneDisplayThresholdKg switches FormatMass from kg to tonnes.
	TonneDisplayThresholdKg = 10_000.0

	// LargeNumberThreshold switches to "~X.X million" notation.
	LargeNumberThreshold = 1_000_000

	// BillionThreshold switches to "~X.X billion" notation.
	BillionThreshold = 1_000_000_000
)

// CanonicalUnit is the mass unit every inventory figure is expressed in.
const CanonicalUnit = "kgCO2e"
