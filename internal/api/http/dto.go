package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/service"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// The returned error is a domain validation error naming the first bad field.
func decodeAndValidate(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.NewValidationError("body", "could not read request body")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return domain.NewValidationError("body", "malformed JSON: "+err.Error())
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.SplitN(fe.Namespace(), ".", 2)
			return domain.NewValidationError(field[len(field)-1], fmt.Sprintf("failed %q check", fe.Tag()))
		}
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}

type referenceRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Relation string `json:"relation"`
}

type documentsRequest struct {
	DrivingLicense string `json:"driving_license"`
	IdentityProof  string `json:"identity_proof"`
	AddressProof   string `json:"address_proof"`
}

type submitBookingRequest struct {
	CarID         int32              `json:"car_id" validate:"required,gt=0"`
	StartTime     time.Time          `json:"start_time" validate:"required"`
	DurationHours int                `json:"duration_hours" validate:"required,gt=0"`
	FullName      string             `json:"full_name" validate:"required"`
	Email         string             `json:"email" validate:"required,email"`
	Phone         string             `json:"phone" validate:"required"`
	Address       string             `json:"address"`
	LicenseNumber string             `json:"license_number" validate:"required"`
	LicenseExpiry time.Time          `json:"license_expiry"`
	References    []referenceRequest `json:"references" validate:"len=2,dive"`
	Documents     documentsRequest   `json:"documents"`

	DepositMethod string `json:"deposit_method" validate:"required,oneof=cash online asset"`
	DepositDetail string `json:"deposit_detail"`

	WithDriver         bool    `json:"with_driver"`
	HomeDelivery       bool    `json:"home_delivery"`
	DeliveryAddress    string  `json:"delivery_address"`
	DeliveryDistanceKm float64 `json:"delivery_distance_km" validate:"gte=0"`
}

func (req *submitBookingRequest) toInput() service.SubmitInput {
	in := service.SubmitInput{
		CarID:         req.CarID,
		StartTime:     req.StartTime,
		DurationHours: req.DurationHours,
		Verification: domain.Verification{
			FullName:      req.FullName,
			Email:         req.Email,
			Phone:         req.Phone,
			Address:       req.Address,
			LicenseNumber: req.LicenseNumber,
			LicenseExpiry: req.LicenseExpiry,
			Documents: domain.Documents{
				DrivingLicense: req.Documents.DrivingLicense,
				IdentityProof:  req.Documents.IdentityProof,
				AddressProof:   req.Documents.AddressProof,
			},
		},
		DepositMethod:      domain.DepositMethod(req.DepositMethod),
		DepositDetail:      req.DepositDetail,
		WithDriver:         req.WithDriver,
		HomeDelivery:       req.HomeDelivery,
		DeliveryAddress:    req.DeliveryAddress,
		DeliveryDistanceKm: req.DeliveryDistanceKm,
	}
	for i := 0; i < len(req.References) && i < len(in.Verification.References); i++ {
		ref := req.References[i]
		in.Verification.References[i] = domain.Reference{Name: ref.Name, Phone: ref.Phone, Relation: ref.Relation}
	}
	return in
}

type noteRequest struct {
	Note string `json:"note"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type declineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type startRequest struct {
	VehicleName   string `json:"vehicle_name" validate:"required"`
	PlateNumber   string `json:"plate_number" validate:"required"`
	StartOdometer int64  `json:"start_odometer" validate:"gte=0"`
}

type completeRequest struct {
	EndOdometer  int64     `json:"end_odometer" validate:"gte=0"`
	ActualReturn time.Time `json:"actual_return"`
}

type refundRequest struct {
	Amount int64 `json:"amount" validate:"gte=0"`
}

type paymentOrderRequest struct {
	Provider string `json:"provider" validate:"required"`
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int32 `json:"total"`
	Page  int32 `json:"page"`
}

type availabilityResponse struct {
	CarID     int32           `json:"car_id"`
	Available bool            `json:"available"`
	Conflicts []domain.Window `json:"conflicts"`
}
