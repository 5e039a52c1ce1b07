// Package workout holds the canonical, portal-independent representation of a
// resolved exercise program. Nil pointer fields mean "unspecified", which
// renders differently from zero.
package workout

import (
	"fmt"
	"strings"
)

type Exercise struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MinSets     *int    `json:"min_sets"`
	MaxSets     *int    `json:"max_sets"`
	MinReps     *int    `json:"min_reps"`
	MaxReps     *int    `json:"max_reps"`
	Sets        *string `json:"sets"`
	Reps        *string `json:"reps"`
	Hold        *string `json:"hold"`
	Frequency   *string `json:"frequency"`
	Note        string  `json:"note"`
	Priority    *int    `json:"priority"`
}

type Program struct {
	ProgramName   string     `json:"program_name"`
	ProgramId     *int64     `json:"program_id"`
	EpisodeId     *int64     `json:"episode_id"`
	ExerciseCount int        `json:"exercise_count"`
	Exercises     []Exercise `json:"exercises"`
}

// Dosage renders the prescription line for an exercise: prescribed attribute
// values when present, falling back to the min/max bounds, or an em dash when
// nothing is specified.
func (e Exercise) Dosage() string {
	var parts []string
	if e.Sets != nil {
		parts = append(parts, fmt.Sprintf("%s set(s)", *e.Sets))
	}
	if e.Reps != nil {
		parts = append(parts, fmt.Sprintf("%s rep(s)", *e.Reps))
	}
	if e.Hold != nil {
		parts = append(parts, fmt.Sprintf("hold %s", *e.Hold))
	}
	if e.Frequency != nil {
		parts = append(parts, *e.Frequency)
	}
	if len(parts) == 0 {
		sets := firstInt(e.MinSets, e.MaxSets)
		reps := firstInt(e.MinReps, e.MaxReps)
		if sets != nil {
			parts = append(parts, fmt.Sprintf("%d set(s)", *sets))
		}
		if reps != nil {
			parts = append(parts, fmt.Sprintf("%d rep(s)", *reps))
		}
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, " · ")
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
