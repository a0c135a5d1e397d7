package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTriggers(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        []string
	}{
		{
			name:        "use when",
			description: "Form helpers. Use when: building forms with validation.",
			want:        []string{"building forms with validation"},
		},
		{
			name:        "fix for and helps with",
			description: "Fix for: flaky snapshot tests. Helps with debugging CI pipelines.",
			want:        []string{"flaky snapshot tests", "debugging CI pipelines"},
		},
		{
			name:        "short clauses are dropped",
			description: "Use when: short.",
			want:        nil,
		},
		{
			name:        "no phrasing",
			description: "A plain description.",
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTriggers(tt.description))
		})
	}
}

func TestExtractTriggersNumberedWhen(t *testing.T) {
	triggers := ExtractTriggers("Activate when: (1) the build fails badly, then stop.")
	require.Len(t, triggers, 1)
	assert.True(t, strings.HasPrefix(triggers[0], "1"))
	assert.Contains(t, triggers[0], "the build fails badly")
}

func TestExtractTriggersLengthBounds(t *testing.T) {
	long := strings.Repeat("a", 100)
	assert.Empty(t, ExtractTriggers("Use when: "+long+"."))

	exact := strings.Repeat("b", 11)
	assert.Equal(t, []string{exact}, ExtractTriggers("Use when: "+exact+"."))
	assert.Empty(t, ExtractTriggers("Use when: "+strings.Repeat("c", 10)+"."))
}

func TestExtractTriggersCap(t *testing.T) {
	var parts []string
	for i := 0; i < 7; i++ {
		parts = append(parts, "Use when: handling case number "+string(rune('a'+i))+".")
	}
	assert.Len(t, ExtractTriggers(strings.Join(parts, " ")), MaxTriggers)
}
