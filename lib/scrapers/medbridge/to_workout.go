package medbridge

import (
	"strings"

	"rehabgo/lib/workout"
)

// ToWorkout converts a raw portal payload into the canonical program shape.
// Missing fields become defaults rather than errors; the portal's payloads
// are too inconsistent to treat absence as failure. nameOverride, when
// non-empty, wins over anything the payload says.
func ToWorkout(payload *EpisodePayload, nameOverride string) workout.Program {
	program := workout.Program{
		ProgramName: "Workout",
		Exercises:   []workout.Exercise{},
	}
	if payload == nil {
		if nameOverride != "" {
			program.ProgramName = nameOverride
		}
		return program
	}

	named := false
	if payload.Episode != nil {
		program.EpisodeId = payload.Episode.Id
		if payload.Episode.Name != "" {
			program.ProgramName = payload.Episode.Name
			named = true
		}
	}
	if payload.Program != nil {
		program.ProgramId = payload.Program.Id
		if !named && payload.Program.Name != "" {
			program.ProgramName = payload.Program.Name
		}
		for _, exercise := range payload.Program.ProgramExercises {
			program.Exercises = append(program.Exercises, toExercise(exercise))
		}
	}
	if nameOverride != "" {
		program.ProgramName = nameOverride
	}

	program.ExerciseCount = len(program.Exercises)
	return program
}

func toExercise(raw ProgramExercise) workout.Exercise {
	exercise := workout.Exercise{
		Name:        raw.Name,
		Description: strings.TrimSpace(raw.Description),
		MinSets:     raw.MinSets,
		MaxSets:     raw.MaxSets,
		MinReps:     raw.MinReps,
		MaxReps:     raw.MaxReps,
		Note:        strings.TrimSpace(raw.Note),
		Priority:    raw.Priority,
	}
	if exercise.Name == "" {
		exercise.Name = "Exercise"
	}

	// attributes arrive as an ordered list of {type, value} records; a
	// repeated type keeps its last value
	attrs := map[string]string{}
	for _, attr := range raw.Attributes {
		if attr.Type == "" {
			continue
		}
		attrs[strings.ToLower(attr.Type)] = string(attr.Value)
	}
	exercise.Sets = attrValue(attrs, "sets")
	exercise.Reps = attrValue(attrs, "reps")
	exercise.Hold = attrValue(attrs, "hold")
	exercise.Frequency = attrValue(attrs, "frequency")

	return exercise
}

func attrValue(attrs map[string]string, key string) *string {
	value, ok := attrs[key]
	if !ok {
		return nil
	}
	return &value
}
