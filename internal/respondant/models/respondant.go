package models

import (
	"math"
	"strings"
	"time"

	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
	pstrings "rescue/pkg/platform/strings"
)

// Respondant is a volunteer or professional who covers a circular service
// area around Location.
//
// Invariants:
//   - FirstName and LastName are 2..20 characters
//   - Phone is non-empty
//   - Location is a valid GeoJSON point
//   - Radius is finite and >= 0, in meters
type Respondant struct {
	ID                  domain.RespondantID `json:"id"`
	FirstName           string              `json:"firstName"`
	LastName            string              `json:"lastName"`
	Phone               string              `json:"phone"`
	Location            geo.Point           `json:"location"`
	Radius              float64             `json:"radius"`
	CertificateValidity bool                `json:"certificate_validity"`
	CreatedAt           time.Time           `json:"creation_date"`
}

// FullName is used in notification messages.
func (r *Respondant) FullName() string {
	return r.FirstName + " " + r.LastName
}

// Covers reports whether p lies inside the service circle, boundary included.
func (r *Respondant) Covers(p geo.Point) bool {
	return geo.Covers(r.Location, r.Radius, p)
}

// Clone returns a deep copy so stores never hand out shared coordinates.
func (r *Respondant) Clone() *Respondant {
	c := *r
	c.Location.Coordinates = append([]float64(nil), r.Location.Coordinates...)
	return &c
}

// Candidate is a respondant returned by a nearest query, with its
// great-circle distance in meters from the query point.
type Candidate struct {
	Respondant *Respondant
	Distance   float64
}

// Profile carries the mutable respondant attributes.
type Profile struct {
	FirstName           string
	LastName            string
	Phone               string
	Location            geo.Point
	Radius              float64
	CertificateValidity bool
}

// Validate normalizes whitespace and returns a validation error listing every
// offending field.
func (p *Profile) Validate() error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Phone = strings.TrimSpace(p.Phone)

	fields := map[string]string{}
	if !pstrings.LengthBetween(p.FirstName, 2, 20) {
		fields["firstName"] = "must be between 2 and 20 characters"
	}
	if !pstrings.LengthBetween(p.LastName, 2, 20) {
		fields["lastName"] = "must be between 2 and 20 characters"
	}
	if p.Phone == "" {
		fields["phone"] = "is required"
	}
	for k, v := range p.Location.Validate() {
		fields["location."+k] = v
	}
	if math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) || p.Radius < 0 {
		fields["radius"] = "must be a finite number of meters >= 0"
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid respondant", fields)
	}
	return nil
}

// NewRespondant validates p and builds a respondant.
func NewRespondant(id domain.RespondantID, p Profile, now time.Time) (*Respondant, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := &Respondant{ID: id, CreatedAt: now}
	r.apply(p)
	return r, nil
}

// ApplyProfile validates p and overwrites the mutable attributes.
func (r *Respondant) ApplyProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.apply(p)
	return nil
}

func (r *Respondant) apply(p Profile) {
	r.FirstName = p.FirstName
	r.LastName = p.LastName
	r.Phone = p.Phone
	r.Location = geo.NewPoint(p.Location.Lon(), p.Location.Lat())
	if len(p.Location.Coordinates) == 3 {
		r.Location.Coordinates = append(r.Location.Coordinates, p.Location.Coordinates[2])
	}
	r.Radius = p.Radius
	r.CertificateValidity = p.CertificateValidity
}
