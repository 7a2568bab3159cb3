package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterventionCreated(t *testing.T) {
	e := InterventionCreated("Fire in the barn", "Jane Doe")
	assert.Equal(t, "New intervention", e.Title)
	assert.Equal(t, "Fire in the barn (assigned to Jane Doe)", e.Message)

	e = InterventionCreated("Flooded cellar", "")
	assert.Equal(t, "Flooded cellar (unassigned)", e.Message)
}

func TestRespondantCount(t *testing.T) {
	e := RespondantCount(3)
	assert.Equal(t, Event{Title: "Respondants", Message: "3 respondants registered"}, e)
}
