package sprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC)
	during := time.Date(2021, 6, 7, 12, 0, 0, 0, time.UTC)
	before := time.Date(2021, 5, 30, 12, 0, 0, 0, time.UTC)
	after := time.Date(2021, 6, 20, 12, 0, 0, 0, time.UTC)

	// start within range
	assert.NoError(t, validateTransition(StatusPlanned, StatusActive, start, end, during))

	// cannot start outside of the sprint dates
	assert.Error(t, validateTransition(StatusPlanned, StatusActive, start, end, before))
	assert.Error(t, validateTransition(StatusPlanned, StatusActive, start, end, after))

	// only a planned sprint can be started
	assert.Error(t, validateTransition(StatusActive, StatusActive, start, end, during))
	assert.Error(t, validateTransition(StatusCompleted, StatusActive, start, end, during))

	// only an active sprint can be completed
	assert.NoError(t, validateTransition(StatusActive, StatusCompleted, start, end, during))
	assert.Error(t, validateTransition(StatusPlanned, StatusCompleted, start, end, during))
	assert.Error(t, validateTransition(StatusCompleted, StatusCompleted, start, end, during))

	// no going back
	assert.Error(t, validateTransition(StatusActive, StatusPlanned, start, end, during))

	// garbage in
	assert.Error(t, validateTransition(StatusPlanned, Status("ARCHIVED"), start, end, during))
}
