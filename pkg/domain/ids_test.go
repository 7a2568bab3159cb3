package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rescue/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRespondantID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseInterventionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE respondants;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errUser := ParseUserID(tt.input)
			_, errRespondant := ParseRespondantID(tt.input)
			_, errIntervention := ParseInterventionID(tt.input)
			if tt.wantErr {
				require.Error(t, errUser)
				require.Error(t, errRespondant)
				require.Error(t, errIntervention)
				assert.True(t, dErrors.HasCode(errUser, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, errUser)
			require.NoError(t, errRespondant)
			require.NoError(t, errIntervention)
		})
	}
}

func TestIDsMarshalAsStrings(t *testing.T) {
	type payload struct {
		Respondant *RespondantID `json:"respondant,omitempty"`
		User       UserID        `json:"user"`
	}

	rid := NewRespondantID()
	uid := NewUserID()
	out, err := json.Marshal(payload{Respondant: &rid, User: uid})
	require.NoError(t, err)
	assert.JSONEq(t, `{"respondant":"`+rid.String()+`","user":"`+uid.String()+`"}`, string(out))

	out, err = json.Marshal(payload{User: uid})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "respondant")

	var back payload
	require.NoError(t, json.Unmarshal([]byte(`{"respondant":"`+rid.String()+`","user":"`+uid.String()+`"}`), &back))
	require.NotNil(t, back.Respondant)
	assert.Equal(t, rid, *back.Respondant)
	assert.Equal(t, uid, back.User)
}
