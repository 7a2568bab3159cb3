package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
)

const (
	MaxDescriptionLength = 300
	MaxPictureLength     = 2048
)

// Intervention is a reported incident and the outcome of its assignment.
// Respondant is nil when nobody covered the location, and may reference a
// respondant that has since been deleted.
type Intervention struct {
	ID          domain.InterventionID `json:"id"`
	Description string                `json:"description"`
	Location    geo.Point             `json:"location"`
	Picture     string                `json:"picture,omitempty"`
	User        domain.UserID         `json:"user"`
	Respondant  *domain.RespondantID  `json:"respondant,omitempty"`
	Active      bool                  `json:"active"`
	CreatedAt   time.Time             `json:"creation_date"`
}

// Clone returns a deep copy.
func (i *Intervention) Clone() *Intervention {
	c := *i
	c.Location.Coordinates = append([]float64(nil), i.Location.Coordinates...)
	if i.Respondant != nil {
		id := *i.Respondant
		c.Respondant = &id
	}
	return &c
}

// AssignedTo reports whether the intervention references id.
func (i *Intervention) AssignedTo(id domain.RespondantID) bool {
	return i.Respondant != nil && *i.Respondant == id
}

// Draft is the client-supplied part of an intervention.
type Draft struct {
	Description string
	Location    geo.Point
	Picture     string
	User        domain.UserID
}

// Validate trims the description and reports every offending field.
func (d *Draft) Validate() error {
	d.Description = strings.TrimSpace(d.Description)
	d.Picture = strings.TrimSpace(d.Picture)

	fields := map[string]string{}
	switch n := utf8.RuneCountInString(d.Description); {
	case n == 0:
		fields["description"] = "is required"
	case n > MaxDescriptionLength:
		fields["description"] = "must be at most 300 characters"
	}
	for k, v := range d.Location.Validate() {
		fields["location."+k] = v
	}
	if len(d.Picture) > MaxPictureLength {
		fields["picture"] = "must be at most 2048 characters"
	}
	if d.User.IsNil() {
		fields["user"] = "is required"
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid intervention", fields)
	}
	return nil
}

// New builds an active intervention from a validated draft.
func New(id domain.InterventionID, d Draft, respondant *domain.RespondantID, now time.Time) *Intervention {
	loc := geo.Point{Type: geo.PointType, Coordinates: append([]float64(nil), d.Location.Coordinates...)}
	return &Intervention{
		ID:          id,
		Description: d.Description,
		Location:    loc,
		Picture:     d.Picture,
		User:        d.User,
		Respondant:  respondant,
		Active:      true,
		CreatedAt:   now,
	}
}

// Filter narrows a scan. Zero fields match everything.
type Filter struct {
	Respondant *domain.RespondantID
	User       *domain.UserID
}

// Match reports whether i passes the filter.
func (f Filter) Match(i *Intervention) bool {
	if f.Respondant != nil && !i.AssignedTo(*f.Respondant) {
		return false
	}
	if f.User != nil && i.User != *f.User {
		return false
	}
	return true
}
