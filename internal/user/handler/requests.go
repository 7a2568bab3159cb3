package handler

import (
	"strings"

	"rescue/internal/user/models"
	dErrors "rescue/pkg/domain-errors"
)

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate only checks presence; the service applies the field rules.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return dErrors.Validation("invalid user", map[string]string{"email": "is required"})
	}
	return nil
}

func (r *RegisterRequest) Registration() models.Registration {
	return models.Registration{
		Profile:  models.Profile{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email},
		Password: r.Password,
	}
}

type ProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (r *ProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p := r.Profile()
	return p.Validate()
}

func (r *ProfileRequest) Profile() models.Profile {
	return models.Profile{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
}

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *TokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	if strings.TrimSpace(r.Email) == "" {
		fields["email"] = "is required"
	}
	if r.Password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid credentials request", fields)
	}
	return nil
}
