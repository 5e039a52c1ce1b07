package medbridge

import (
	"encoding/json"
	"strings"
)

// EpisodePayload is the portal's raw episode/program response. The shape is
// not contractually stable, so every field is optional and consumers must
// read with a default-on-missing policy.
type EpisodePayload struct {
	Episode *Episode `json:"episode"`
	Program *Program `json:"program"`
}

// Bound reports whether the payload actually carries a program or episode,
// which is the only success signal the workout endpoint gives.
func (p *EpisodePayload) Bound() bool {
	return p != nil && (p.Episode != nil || p.Program != nil)
}

type Episode struct {
	Id   *int64 `json:"id"`
	Name string `json:"name"`
}

type Program struct {
	Id               *int64            `json:"id"`
	Name             string            `json:"name"`
	ProgramExercises []ProgramExercise `json:"program_exercises"`
}

type ProgramExercise struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	MinSets     *int                `json:"min_sets"`
	MaxSets     *int                `json:"max_sets"`
	MinReps     *int                `json:"min_reps"`
	MaxReps     *int                `json:"max_reps"`
	Note        string              `json:"note"`
	Priority    *int                `json:"priority"`
	Attributes  []ExerciseAttribute `json:"program_exercise_attributes"`
}

// ExerciseAttribute is one {type, value} dosage record, e.g.
// {"type": "reps", "value": "10"}.
type ExerciseAttribute struct {
	Type  string     `json:"type"`
	Value FlexString `json:"value"`
}

// FlexString tolerates the portal sending a value as either a json string or
// a bare literal (number, bool). It never fails to unmarshal.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	*s = FlexString(raw)
	return nil
}
