package pricing

import (
	"fmt"

	"carbooking-backend/internal/domain"
)

// DefaultMaxDeliveryDistanceKm is the radius inside which the flat delivery fee applies.
const DefaultMaxDeliveryDistanceKm = 5

// Policy computes the base rental price of a car for a duration in hours.
type Policy interface {
	BasePrice(car *domain.Car, hours int) (int64, error)
}

// TieredPolicy prices from the car's tier table. A duration with no exact tier
// is charged as whole units of UnitHours, rounded up.
type TieredPolicy struct {
	UnitHours int
}

func (p TieredPolicy) BasePrice(car *domain.Car, hours int) (int64, error) {
	if price, ok := car.TierPrices[hours]; ok {
		return price, nil
	}
	unit := p.UnitHours
	if unit <= 0 {
		unit = 24
	}
	unitPrice, ok := car.TierPrices[unit]
	if !ok {
		return 0, domain.NewValidationError("duration_hours", fmt.Sprintf("car %d has no %dh tier to fall back to", car.ID, unit))
	}
	return unitPrice * int64(ceilDiv(hours, unit)), nil
}

// HourlyPolicy charges a flat rate per hour.
type HourlyPolicy struct{}

func (HourlyPolicy) BasePrice(car *domain.Car, hours int) (int64, error) {
	if car.HourlyRate <= 0 {
		return 0, domain.NewValidationError("duration_hours", fmt.Sprintf("car %d has no hourly rate", car.ID))
	}
	return car.HourlyRate * int64(hours), nil
}

// DeliveryPolicy describes the home-delivery surcharge.
type DeliveryPolicy struct {
	FlatFee            int64
	MaxDistanceKm      float64
	RejectBeyondRadius bool
}

type QuoteRequest struct {
	DurationHours      int
	WithDriver         bool
	HomeDelivery       bool
	DeliveryDistanceKm float64
}

// Quote is the itemized price of a rental.
type Quote struct {
	BasePrice    int64 `json:"base_price"`
	DriverCharge int64 `json:"driver_charge"`
	DeliveryFee  int64 `json:"delivery_fee"`
	Total        int64 `json:"total"`
}

// Engine selects a Policy by the car's pricing scheme. It never touches persistence.
type Engine struct {
	policies map[domain.PricingScheme]Policy
	delivery DeliveryPolicy
}

func NewEngine(delivery DeliveryPolicy, policies map[domain.PricingScheme]Policy) *Engine {
	if delivery.MaxDistanceKm <= 0 {
		delivery.MaxDistanceKm = DefaultMaxDeliveryDistanceKm
	}
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Engine{policies: policies, delivery: delivery}
}

func DefaultPolicies() map[domain.PricingScheme]Policy {
	return map[domain.PricingScheme]Policy{
		domain.PricingSchemeTiered: TieredPolicy{UnitHours: 24},
		domain.PricingSchemeHourly: HourlyPolicy{},
	}
}

func (e *Engine) Quote(car *domain.Car, req QuoteRequest) (Quote, error) {
	if req.DurationHours <= 0 {
		return Quote{}, domain.NewValidationError("duration_hours", "must be positive")
	}

	scheme := car.PricingScheme
	if scheme == "" {
		scheme = domain.PricingSchemeTiered
	}
	policy, ok := e.policies[scheme]
	if !ok {
		return Quote{}, domain.NewValidationError("pricing_scheme", fmt.Sprintf("unsupported pricing scheme %q", scheme))
	}

	base, err := policy.BasePrice(car, req.DurationHours)
	if err != nil {
		return Quote{}, err
	}

	driver, err := DriverCharge(car, req.DurationHours, req.WithDriver)
	if err != nil {
		return Quote{}, err
	}

	delivery, err := e.DeliveryFee(req.HomeDelivery, req.DeliveryDistanceKm)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		BasePrice:    base,
		DriverCharge: driver,
		DeliveryFee:  delivery,
		Total:        base + driver + delivery,
	}, nil
}

// DriverCharge bills the per-day driver rate for every started day.
func DriverCharge(car *domain.Car, hours int, requested bool) (int64, error) {
	if !requested {
		return 0, nil
	}
	if !car.DriverAvailable {
		return 0, domain.NewValidationError("with_driver", fmt.Sprintf("car %d does not offer a driver", car.ID))
	}
	return car.DriverChargePerDay * int64(ceilDiv(hours, 24)), nil
}

// DeliveryFee returns the flat fee inside the delivery radius. Beyond it the
// fee is zero unless the policy rejects such requests.
func (e *Engine) DeliveryFee(requested bool, distanceKm float64) (int64, error) {
	if !requested {
		return 0, nil
	}
	if distanceKm < 0 {
		return 0, domain.NewValidationError("delivery_distance_km", "must not be negative")
	}
	if distanceKm <= e.delivery.MaxDistanceKm {
		return e.delivery.FlatFee, nil
	}
	if e.delivery.RejectBeyondRadius {
		return 0, domain.NewValidationError("delivery_distance_km", fmt.Sprintf("home delivery is limited to %.0f km", e.delivery.MaxDistanceKm))
	}
	return 0, nil
}

// LateFee charges ratePerHour for every started late hour. No early-return discount.
func LateFee(lateHours int, ratePerHour int64) int64 {
	if lateHours <= 0 {
		return 0
	}
	return int64(lateHours) * ratePerHour
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
