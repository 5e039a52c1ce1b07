package commands

import (
	"testing"

	"rehabgo/services/resolver"

	"github.com/stretchr/testify/require"
)

func TestProgramTokensTrimsAndDropsMalformedEntries(t *testing.T) {
	cfg := Config{
		Programs: []ProgramConfig{
			{Name: "  Neck Care  ", Code: " ABC123 "},
			{Name: "   ", Code: "XYZ789"},
			{Name: "Knee Rehab", Code: "  "},
			{Name: "", Code: ""},
		},
		Tokens: "Hip Mobility:HIP001",
	}

	require.Equal(t, []resolver.ProgramToken{
		{Name: "Neck Care", Code: "ABC123"},
		{Name: "Hip Mobility", Code: "HIP001"},
	}, cfg.programTokens())
}

func TestProgramTokensEmptyConfig(t *testing.T) {
	require.Empty(t, Config{}.programTokens())
}
