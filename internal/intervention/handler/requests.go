package handler

import (
	"strings"

	"rescue/internal/intervention/models"
	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
)

// CreateRequest is the body of POST /interventions. User defaults to the
// authenticated subject.
type CreateRequest struct {
	Description string         `json:"description"`
	Location    *geo.Point     `json:"location"`
	Picture     string         `json:"picture"`
	User        *domain.UserID `json:"user"`
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	if r.Location == nil {
		fields["location"] = "is required"
	}

	d := r.Draft(domain.UserID{})
	if err := d.Validate(); err != nil {
		if de, ok := dErrors.From(err); ok {
			for k, v := range de.Fields {
				if k == "user" {
					continue
				}
				if r.Location == nil && strings.HasPrefix(k, "location.") {
					continue
				}
				fields[k] = v
			}
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid intervention", fields)
	}
	return nil
}

// Draft converts the request, using subject when no reporter was given.
func (r *CreateRequest) Draft(subject domain.UserID) models.Draft {
	d := models.Draft{
		Description: r.Description,
		Picture:     r.Picture,
		User:        subject,
	}
	if r.Location != nil {
		d.Location = *r.Location
	}
	if r.User != nil && !r.User.IsNil() {
		d.User = *r.User
	}
	return d
}
