package user

import (
	"strings"
	"time"

	"github.com/wichananm65/storefront/internal/auth"
)

type User struct {
	ID            int       `json:"userId" db:"user_id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	FirstName     string    `json:"firstName" db:"first_name"`
	LastName      string    `json:"lastName" db:"last_name"`
	Phone         string    `json:"phone" db:"phone"`
	Role          auth.Role `json:"role" db:"role"`
	MainAddressID *int      `json:"mainAddressId,omitempty" db:"main_address_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Identity is the JWT subject for this account.
func (u User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// ProfileUpdate is a partial update; nil fields are left alone.
type ProfileUpdate struct {
	FirstName     *string `json:"firstName,omitempty"`
	LastName      *string `json:"lastName,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	MainAddressID *int    `json:"mainAddressId,omitempty"`
}

func (p ProfileUpdate) apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.MainAddressID != nil {
		id := *p.MainAddressID
		u.MainAddressID = &id
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
