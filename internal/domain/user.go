package domain

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

type User struct {
	ID          int32    `json:"id"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phone_number"`
	Name        string   `json:"name"`
	Role        UserRole `json:"role"`
	CreatedOn   string   `json:"created_on"`
	UpdatedOn   string   `json:"updated_on"`
}
