package handler

import (
	"strings"

	"rescue/internal/respondant/models"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
)

// ProfileRequest is the body of POST /respondants and PUT /respondants/{id}.
type ProfileRequest struct {
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Phone               string     `json:"phone"`
	Location            *geo.Point `json:"location"`
	Radius              *float64   `json:"radius"`
	CertificateValidity *bool      `json:"certificate_validity"`
}

// Validate checks presence here and leaves value rules to models.Profile, so
// both sets of field errors are reported together.
func (r *ProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	if r.Location == nil {
		fields["location"] = "is required"
	}
	if r.Radius == nil {
		fields["radius"] = "is required"
	}
	if r.CertificateValidity == nil {
		fields["certificate_validity"] = "is required"
	}

	p := r.Profile()
	if err := p.Validate(); err != nil {
		if de, ok := dErrors.From(err); ok {
			for k, v := range de.Fields {
				if r.Location == nil && strings.HasPrefix(k, "location.") {
					continue
				}
				if _, set := fields[k]; !set {
					fields[k] = v
				}
			}
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid respondant", fields)
	}
	return nil
}

// Profile converts the request. Missing optional values become zero values.
func (r *ProfileRequest) Profile() models.Profile {
	p := models.Profile{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
	if r.Location != nil {
		p.Location = *r.Location
	}
	if r.Radius != nil {
		p.Radius = *r.Radius
	}
	if r.CertificateValidity != nil {
		p.CertificateValidity = *r.CertificateValidity
	}
	return p
}
