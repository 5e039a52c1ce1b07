package medbridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func TestToWorkout(t *testing.T) {
	payload := &EpisodePayload{
		Episode: &Episode{Id: int64p(9001), Name: "Neck Care"},
		Program: &Program{
			Id:   int64p(55),
			Name: "Cervical Program",
			ProgramExercises: []ProgramExercise{
				{
					Name:        "Chin Tuck",
					Description: "  <p>Tuck your chin gently.</p>\n",
					MinSets:     intp(2),
					MaxSets:     intp(3),
					Note:        "Keep shoulders relaxed ",
					Priority:    intp(1),
					Attributes: []ExerciseAttribute{
						{Type: "sets", Value: "3"},
						{Type: "reps", Value: "10"},
						{Type: "hold", Value: "5 seconds"},
					},
				},
			},
		},
	}

	program := ToWorkout(payload, "")
	require.Equal(t, "Neck Care", program.ProgramName)
	require.Equal(t, int64p(9001), program.EpisodeId)
	require.Equal(t, int64p(55), program.ProgramId)
	require.Equal(t, 1, program.ExerciseCount)
	require.Len(t, program.Exercises, 1)

	exercise := program.Exercises[0]
	require.Equal(t, "Chin Tuck", exercise.Name)
	require.Equal(t, "<p>Tuck your chin gently.</p>", exercise.Description)
	require.Equal(t, "Keep shoulders relaxed", exercise.Note)
	require.Equal(t, intp(2), exercise.MinSets)
	require.Equal(t, intp(3), exercise.MaxSets)
	require.Nil(t, exercise.MinReps)
	require.Equal(t, "3", *exercise.Sets)
	require.Equal(t, "10", *exercise.Reps)
	require.Equal(t, "5 seconds", *exercise.Hold)
	require.Nil(t, exercise.Frequency)
}

func TestToWorkoutNamePrecedence(t *testing.T) {
	payload := &EpisodePayload{
		Episode: &Episode{Id: int64p(1), Name: "Episode Name"},
		Program: &Program{Id: int64p(2), Name: "Program Name"},
	}

	require.Equal(t, "Override", ToWorkout(payload, "Override").ProgramName)
	require.Equal(t, "Episode Name", ToWorkout(payload, "").ProgramName)

	payload.Episode.Name = ""
	require.Equal(t, "Program Name", ToWorkout(payload, "").ProgramName)

	payload.Program.Name = ""
	require.Equal(t, "Workout", ToWorkout(payload, "").ProgramName)
}

func TestToWorkoutDefaultsOnMissingData(t *testing.T) {
	program := ToWorkout(&EpisodePayload{}, "")
	require.Equal(t, "Workout", program.ProgramName)
	require.Nil(t, program.EpisodeId)
	require.Nil(t, program.ProgramId)
	require.Equal(t, 0, program.ExerciseCount)
	require.NotNil(t, program.Exercises)

	program = ToWorkout(nil, "Knee Plan")
	require.Equal(t, "Knee Plan", program.ProgramName)
	require.Equal(t, 0, program.ExerciseCount)
}

func TestToWorkoutAttributeLastValueWins(t *testing.T) {
	payload := &EpisodePayload{
		Program: &Program{
			ProgramExercises: []ProgramExercise{
				{
					Name: "Bridge",
					Attributes: []ExerciseAttribute{
						{Type: "reps", Value: "8"},
						{Type: "Reps", Value: "12"},
						{Type: "", Value: "ignored"},
					},
				},
			},
		},
	}

	program := ToWorkout(payload, "")
	require.Equal(t, "12", *program.Exercises[0].Reps)
}

func TestFlexStringAcceptsBareLiterals(t *testing.T) {
	var attr ExerciseAttribute
	require.NoError(t, json.Unmarshal([]byte(`{"type": "reps", "value": 10}`), &attr))
	require.Equal(t, FlexString("10"), attr.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"type": "hold", "value": "5 seconds"}`), &attr))
	require.Equal(t, FlexString("5 seconds"), attr.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"type": "sets", "value": null}`), &attr))
	require.Equal(t, FlexString(""), attr.Value)
}
