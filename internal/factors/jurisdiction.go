package factors

import "strings"

// jurisdictionAliases maps normalized free-form names to ISO 3166-1 alpha-2 codes.
//
//nolint:gochecknoglobals // Fixed lookup table.
var jurisdictionAliases = map[string]string{
	"global": Global,

	"au":        "AU",
	"aus":       "AU",
	"australia": "AU",

	"us":                       "US",
	"usa":                      "US",
	"united_states":            "US",
	"united_states_of_america": "US",
	"america":                  "US",

	"gb":             "GB",
	"uk":             "GB",
	"united_kingdom": "GB",
	"great_britain":  "GB",
	"england":        "GB",

	"nz":          "NZ",
	"new_zealand": "NZ",

	"ca":     "CA",
	"canada": "CA",

	"de":      "DE",
	"germany": "DE",

	"fr":     "FR",
	"france": "FR",

	"jp":    "JP",
	"japan": "JP",

	"sg":        "SG",
	"singapore": "SG",

	"in":    "IN",
	"india": "IN",
}

// NormalizeJurisdiction maps a free-form country name or code to a jurisdiction
// code. Case, surrounding space, inner spaces and hyphens are ignored, so
// "United States", "united-states" and "US" all yield "US". Unrecognized names
// normalize to GLOBAL.
func NormalizeJurisdiction(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(n)
	if code, ok := jurisdictionAliases[n]; ok {
		return code
	}
	return Global
}
