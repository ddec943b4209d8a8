// Package model defines the platform's relational row types, their status
// enums and field validation.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// Role identifies what kind of organisation a profile represents
type Role string

const (
	RoleMunicipality Role = "municipality"
	RoleDeveloper    Role = "developer"
	RoleIntegrator   Role = "integrator"
	RoleAdmin        Role = "admin"
)

// SelfServiceRoles are the roles a user may pick when registering
var SelfServiceRoles = []Role{RoleMunicipality, RoleDeveloper, RoleIntegrator}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleMunicipality, RoleDeveloper, RoleIntegrator, RoleAdmin:
		return true
	}
	return false
}

// PopulationBand groups municipalities by size for benchmarking
type PopulationBand string

const (
	BandAll    PopulationBand = ""
	BandSmall  PopulationBand = "small"
	BandMedium PopulationBand = "medium"
	BandLarge  PopulationBand = "large"
)

// BandFor returns the band a population falls into
func BandFor(population int64) PopulationBand {
	switch {
	case population < 50_000:
		return BandSmall
	case population < 500_000:
		return BandMedium
	default:
		return BandLarge
	}
}

// Bounds returns the inclusive lower and exclusive upper population bound of
// the band. An upper bound of -1 means unbounded.
func (b PopulationBand) Bounds() (int64, int64) {
	switch b {
	case BandSmall:
		return 0, 50_000
	case BandMedium:
		return 50_000, 500_000
	case BandLarge:
		return 500_000, -1
	default:
		return 0, -1
	}
}

// Profile is a platform user
type Profile struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Organization string    `db:"organization" json:"organization"`
	Role         Role      `db:"role" json:"role"`
	City         string    `db:"city" json:"city"`
	Country      string    `db:"country" json:"country"`
	Population   int64     `db:"population" json:"population"`
	Bio          string    `db:"bio" json:"bio"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks profile fields
func (p *Profile) Validate() error {
	ve := validation.NewValidationErrors()
	if ve.Required("email", p.Email) {
		ve.Email("email", p.Email)
	}
	ve.Required("full_name", p.FullName)
	ve.MaxLength("full_name", p.FullName, 200)
	ve.MaxLength("organization", p.Organization, 200)
	ve.MaxLength("bio", p.Bio, 4000)
	if !p.Role.Valid() {
		ve.Add("role", "is invalid")
	}
	if p.Population < 0 {
		ve.Add("population", "must not be negative")
	}
	return ve.ErrOrNil()
}
