// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityCustomer                      // Access token required
	SecurityAdmin                         // Access token with admin role required
)

// MethodGRPC prefixes gRPC full method names in EndpointSecurityConfig.
const MethodGRPC = "GRPC"

// EndpointSecurityConfig maps "METHOD route-template" to its required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"GET /health":                              SecurityPublic,
	"GET /api/v1/cars/{id}/availability":       SecurityPublic,
	"GET /api/v1/cars/{id}/quote":              SecurityPublic,
	"POST /api/v1/payments/{provider}/webhook": SecurityPublic, // authenticated by gateway signature
	"GRPC /grpc.health.v1.Health/Check":        SecurityPublic,

	// Customer
	"POST /api/v1/bookings":                    SecurityCustomer,
	"GET /api/v1/bookings":                     SecurityCustomer,
	"GET /api/v1/bookings/{id}":                SecurityCustomer,
	"POST /api/v1/bookings/{id}/cancel":        SecurityCustomer,
	"POST /api/v1/bookings/{id}/payment-order": SecurityCustomer,
	"POST /api/v1/payments/{provider}/verify":  SecurityCustomer,
	"GET /api/v1/notifications":                SecurityCustomer,
	"POST /api/v1/notifications/{id}/read":     SecurityCustomer,

	// Admin
	"GET /api/v1/admin/bookings/awaiting-payment": SecurityAdmin,
	"GET /api/v1/admin/bookings/overdue":          SecurityAdmin,
	"GET /api/v1/admin/cars/{id}/bookings":        SecurityAdmin,
	"GET /api/v1/admin/cars/{id}/conflicts":       SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/accept":     SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/decline":    SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/start":      SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/complete":   SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/cancel":     SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/refund":     SecurityAdmin,
	"POST /api/v1/admin/bookings/{id}/reconcile":  SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(method, pathTemplate string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method+" "+pathTemplate]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
