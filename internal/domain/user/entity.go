package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the actor kind issued by the identity service
type Role string

const (
	RoleCustomer  Role = "CUSTOMER"
	RoleOrganizer Role = "ORGANIZER"
)

// User is the slice of the users table the purchase flow reads.
// Points is the denormalized loyalty balance.
type User struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Role      Role      `db:"role"`
	Points    int64     `db:"points"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsOrganizer returns true for event organizers
func (u *User) IsOrganizer() bool {
	return u.Role == RoleOrganizer
}
