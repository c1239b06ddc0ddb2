package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusAccepted       BookingStatus = "accepted"
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusPaid           BookingStatus = "paid"
	BookingStatusActive         BookingStatus = "active"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusDeclined       BookingStatus = "declined"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

type DepositMethod string

const (
	DepositMethodCash   DepositMethod = "cash"
	DepositMethodOnline DepositMethod = "online"
	DepositMethodAsset  DepositMethod = "asset"
)

type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "pending"
	DepositStatusReceived DepositStatus = "received"
	DepositStatusRefunded DepositStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentProvider string

const (
	PaymentProviderStripe   PaymentProvider = "stripe"
	PaymentProviderRazorpay PaymentProvider = "razorpay"
)

type Reference struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

// Documents holds opaque handles to uploaded files. Only presence is checked.
type Documents struct {
	DrivingLicense string `json:"driving_license"`
	IdentityProof  string `json:"identity_proof"`
	AddressProof   string `json:"address_proof"`
}

func (d Documents) Missing() []string {
	var missing []string
	if d.DrivingLicense == "" {
		missing = append(missing, "driving_license")
	}
	if d.IdentityProof == "" {
		missing = append(missing, "identity_proof")
	}
	if d.AddressProof == "" {
		missing = append(missing, "address_proof")
	}
	return missing
}

type Verification struct {
	FullName      string       `json:"full_name"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone"`
	Address       string       `json:"address"`
	References    [2]Reference `json:"references"`
	LicenseNumber string       `json:"license_number"`
	LicenseExpiry time.Time    `json:"license_expiry"`
	Documents     Documents    `json:"documents"`
}

type Deposit struct {
	Method DepositMethod `json:"method"`
	Detail string        `json:"detail,omitempty"`
	Amount int64         `json:"amount"`
	Status DepositStatus `json:"status"`
}

// Payment carries gateway correlation ids. They are stored and compared, never generated here.
type Payment struct {
	Provider       PaymentProvider `json:"provider,omitempty"`
	Status         PaymentStatus   `json:"status"`
	OrderID        string          `json:"order_id,omitempty"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	PaidAmount     int64           `json:"paid_amount"`
	RefundedAmount int64           `json:"refunded_amount"`
	RefundID       string          `json:"refund_id,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

type Handover struct {
	VehicleName   string     `json:"vehicle_name,omitempty"`
	PlateNumber   string     `json:"plate_number,omitempty"`
	StartOdometer int64      `json:"start_odometer"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndOdometer   *int64     `json:"end_odometer,omitempty"`
	ActualReturn  *time.Time `json:"actual_return,omitempty"`
}

type Booking struct {
	ID            int32        `json:"id"`
	Reference     string       `json:"reference"`
	CustomerID    int32        `json:"customer_id"`
	CarID         int32        `json:"car_id"`
	StartTime     time.Time    `json:"start_time"`
	DurationHours int          `json:"duration_hours"`
	EndTime       time.Time    `json:"end_time"`
	Verification  Verification `json:"verification"`
	Deposit       Deposit      `json:"deposit"`

	WithDriver         bool    `json:"with_driver"`
	DriverCharge       int64   `json:"driver_charge"`
	HomeDelivery       bool    `json:"home_delivery"`
	DeliveryAddress    string  `json:"delivery_address,omitempty"`
	DeliveryDistanceKm float64 `json:"delivery_distance_km,omitempty"`
	DeliveryFee        int64   `json:"delivery_fee"`

	BasePrice     int64 `json:"base_price"`
	LateHours     int   `json:"late_hours"`
	LateReturnFee int64 `json:"late_return_fee"`
	TotalPrice    int64 `json:"total_price"`

	Status       BookingStatus `json:"status"`
	AdminNote    string        `json:"admin_note,omitempty"`
	CancelReason string        `json:"cancel_reason,omitempty"`
	Payment      Payment       `json:"payment"`
	Handover     Handover      `json:"handover"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (b *Booking) Window() Window {
	return Window{Start: b.StartTime, End: b.EndTime}
}

// RecomputeTotal replaces the total with the sum of its current components.
func (b *Booking) RecomputeTotal() {
	b.TotalPrice = b.BasePrice + b.DriverCharge + b.DeliveryFee + b.LateReturnFee
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.Payment.PaidAt != nil {
		t := *b.Payment.PaidAt
		c.Payment.PaidAt = &t
	}
	if b.Handover.StartedAt != nil {
		t := *b.Handover.StartedAt
		c.Handover.StartedAt = &t
	}
	if b.Handover.EndOdometer != nil {
		v := *b.Handover.EndOdometer
		c.Handover.EndOdometer = &v
	}
	if b.Handover.ActualReturn != nil {
		t := *b.Handover.ActualReturn
		c.Handover.ActualReturn = &t
	}
	return &c
}
