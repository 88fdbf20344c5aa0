package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRecord is a stored user profile row
type UserRecord struct {
	ID             uuid.UUID  `json:"id"`
	Login          string     `json:"login"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Address        string     `json:"address,omitempty"`
	ZipCode        string     `json:"zipcode,omitempty"`
	BirthDate      string     `json:"birth_date,omitempty"`
	RegistrationIP string     `json:"registration_ip,omitempty"`
	LastLoginIP    string     `json:"last_login_ip,omitempty"`
	LastUserAgent  string     `json:"last_user_agent,omitempty"`
	ProfileURL     string     `json:"profile_url,omitempty"`
	AnonymizedAt   *time.Time `json:"anonymized_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsAnonymized reports whether the record has been through a scrub
func (u *UserRecord) IsAnonymized() bool {
	return u.AnonymizedAt != nil
}

// UpdateUserRequest contains optional profile fields for a partial update.
// Nil fields are left untouched.
type UpdateUserRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	ZipCode     *string `json:"zipcode,omitempty"`
	BirthDate   *string `json:"birth_date,omitempty"`
	ProfileURL  *string `json:"profile_url,omitempty"`
}

// UserFilters contains filtering options for listing users
type UserFilters struct {
	Login         string     `json:"login,omitempty"`
	Anonymized    *bool      `json:"anonymized,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// UserListResponse contains a paginated user list
type UserListResponse struct {
	Users      []*UserRecord `json:"users"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}
