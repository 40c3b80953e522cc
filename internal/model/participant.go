package model

// Role is a participant's part in the demo
type Role string

const (
	RoleSE       Role = "SE"       // Sales Engineer being evaluated
	RoleCustomer Role = "Customer" // Someone from the buying organization
	RolePartner  Role = "Partner"  // Any other internal team member (AE, BDR, SA, ...)
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSE, RoleCustomer, RolePartner:
		return true
	default:
		return false
	}
}

// Participant is a person speaking in the transcript
type Participant struct {
	Name string `json:"name" yaml:"name"`
	Role Role   `json:"role" yaml:"role"`
}
