package summary

import (
	"fmt"
	"strings"
)

// Generator produces the digest text of a daily summary from board counts
type Generator interface {
	Generate(projectName string, counts StatusCounts) string
}

// StatsGenerator builds the digest from the counts alone. It is the
// default when no external analysis backend is configured.
type StatsGenerator struct {
}

// Generate returns a multi-line progress digest
func (g *StatsGenerator) Generate(projectName string, counts StatusCounts) string {
	var total, done, inProgress int64
	for status, n := range counts {
		total += n
		switch status {
		case "DONE":
			done += n
		case "IN_PROGRESS", "IN_REVIEW":
			inProgress += n
		}
	}

	lines := make([]string, 0, 4)
	lines = append(lines, fmt.Sprintf("Project %s has %d total issues with %d completed.", projectName, total, done))
	if total > 0 {
		rate := float64(done) / float64(total) * 100
		lines = append(lines, fmt.Sprintf("Current completion rate is %.1f%%.", rate))
	}
	lines = append(lines, fmt.Sprintf("There are %d issues currently in flight.", inProgress))

	return strings.Join(lines, "\n")
}
