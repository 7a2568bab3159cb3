package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "rescue/pkg/domain-errors"
)

// Typed identifiers keep users, respondants and interventions from being
// mixed up at compile time. All are UUIDs on the wire.
type (
	UserID         uuid.UUID
	RespondantID   uuid.UUID
	InterventionID uuid.UUID
)

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewRespondantID() RespondantID     { return RespondantID(uuid.New()) }
func NewInterventionID() InterventionID { return InterventionID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseRespondantID(s string) (RespondantID, error) {
	u, err := parseUUID(s, "respondant id")
	return RespondantID(u), err
}

func ParseInterventionID(s string) (InterventionID, error) {
	u, err := parseUUID(s, "intervention id")
	return InterventionID(u), err
}

// parseUUID enforces the trust-boundary invariant: ids are valid, non-nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is not valid UTF-8")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id RespondantID) String() string { return uuid.UUID(id).String() }
func (id RespondantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RespondantID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *RespondantID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id InterventionID) String() string { return uuid.UUID(id).String() }
func (id InterventionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id InterventionID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *InterventionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
