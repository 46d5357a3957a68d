package models

const RoleAdmin = "admin"

// Identity is the authenticated caller of a request.
type Identity struct {
	CustomerID string
	Email      string
	Role       string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
