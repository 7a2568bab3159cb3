package models

import (
	"strings"
	"time"

	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/email"
	pstrings "rescue/pkg/platform/strings"
)

// MinPasswordLength applies to new passwords only.
const MinPasswordLength = 8

// User reports interventions. The password hash never leaves the service.
type User struct {
	ID           domain.UserID `json:"id"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email"`
	PasswordHash []byte        `json:"-"`
	RegisteredAt time.Time     `json:"registration_date"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) Clone() *User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &c
}

// Profile carries the attributes a user may change.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
}

// Validate normalizes the email and trims names.
func (p *Profile) Validate() error {
	fields := p.validate()
	if len(fields) > 0 {
		return dErrors.Validation("invalid user", fields)
	}
	return nil
}

func (p *Profile) validate() map[string]string {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = email.Normalize(p.Email)

	fields := map[string]string{}
	if !pstrings.LengthBetween(p.FirstName, 2, 20) {
		fields["firstName"] = "must be between 2 and 20 characters"
	}
	if !pstrings.LengthBetween(p.LastName, 2, 20) {
		fields["lastName"] = "must be between 2 and 20 characters"
	}
	if !email.Valid(p.Email) {
		fields["email"] = "must be a valid email address"
	}
	return fields
}

// Registration is a profile plus the initial password. When both names are
// omitted they are derived from the email local part.
type Registration struct {
	Profile
	Password string
}

func (r *Registration) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" && strings.TrimSpace(r.LastName) == "" {
		r.FirstName, r.LastName = email.DeriveNameFromEmail(email.Normalize(r.Email))
	}
	fields := r.validate()
	if len([]rune(r.Password)) < MinPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid user", fields)
	}
	return nil
}

// Apply overwrites the profile attributes.
func (u *User) Apply(p Profile) {
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Email = p.Email
}
