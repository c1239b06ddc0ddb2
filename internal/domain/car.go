package domain

import "time"

type PricingScheme string

const (
	PricingSchemeTiered PricingScheme = "tiered"
	PricingSchemeHourly PricingScheme = "hourly"
)

// StandardTiers are the duration buckets (hours) a tiered tariff is quoted for.
var StandardTiers = []int{12, 24, 36, 48, 60, 72}

// Car is the catalog entry a booking references. Amounts are whole currency units.
type Car struct {
	ID                 int32         `json:"id"`
	Name               string        `json:"name"`
	PlateNumber        string        `json:"plate_number"`
	Class              string        `json:"class"`
	PricingScheme      PricingScheme `json:"pricing_scheme"`
	TierPrices         map[int]int64 `json:"tier_prices,omitempty"`
	HourlyRate         int64         `json:"hourly_rate"`
	SecurityDeposit    int64         `json:"security_deposit"`
	DriverAvailable    bool          `json:"driver_available"`
	DriverChargePerDay int64         `json:"driver_charge_per_day"`
	Available          bool          `json:"available"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
