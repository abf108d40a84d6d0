package activity

// weightUnits maps ERP weight unit ids onto the provider's unit labels.
// Unmapped ids are dropped from the document.
var weightUnits = map[string]string{
	"WT_lb": "lbs",
	"WT_kg": "kg",
	"WT_g":  "g",
}

// WeightUnit returns the provider label for an ERP weight unit id.
func WeightUnit(uomID string) (string, bool) {
	label, ok := weightUnits[uomID]
	return label, ok
}
