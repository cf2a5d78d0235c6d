package billing

import "telco-billing/internal/models"

// Static per-category rates in cents, charged per active service per billing
// period. Unknown categories fall back to defaultRateCents.
var rateTable = map[string]int64{
	models.ChargeTypeVoice:   45000,
	models.ChargeTypeData:    85000,
	models.ChargeTypeSMS:     10000,
	models.ChargeTypeRoaming: 120000,
	models.ChargeTypeVAS:     25000,
}

const defaultRateCents int64 = 25000

// rateFor returns the per-period charge for a service category and whether the
// category was known to the rate table.
func rateFor(category string) (int64, bool) {
	chargeType, known := models.NormalizeChargeType(category)
	rate, ok := rateTable[chargeType]
	if !ok {
		return defaultRateCents, false
	}
	return rate, known
}
