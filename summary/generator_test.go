package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsGenerator(t *testing.T) {
	g := &StatsGenerator{}

	text := g.Generate("Apollo", StatusCounts{
		"TODO":        4,
		"IN_PROGRESS": 2,
		"IN_REVIEW":   1,
		"DONE":        3,
	})

	assert.Contains(t, text, "Project Apollo has 10 total issues with 3 completed.")
	assert.Contains(t, text, "Current completion rate is 30.0%.")
	assert.Contains(t, text, "There are 3 issues currently in flight.")
}

func TestStatsGeneratorEmptyBoard(t *testing.T) {
	g := &StatsGenerator{}

	text := g.Generate("Apollo", StatusCounts{})

	assert.Contains(t, text, "Project Apollo has 0 total issues with 0 completed.")
	// no completion rate line when there is nothing to complete
	assert.NotContains(t, text, "completion rate")
}
