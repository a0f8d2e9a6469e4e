package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriority(t *testing.T) {
	t.Run("Should map synonyms case-insensitively", func(t *testing.T) {
		cases := map[string]Priority{
			"urgent":       PriorityHigh,
			"ASAP":         PriorityHigh,
			" Blocker! ":   PriorityCritical,
			"highest":      PriorityCritical,
			"Low":          PriorityLow,
			"nice-to-have": PriorityLow,
			"Medium":       PriorityMedium,
			"P0":           PriorityCritical,
		}
		for in, want := range cases {
			assert.Equal(t, want, ParsePriority(in), in)
		}
	})

	t.Run("Should default anything unrecognized to MEDIUM", func(t *testing.T) {
		for _, in := range []string{"", "   ", "whenever", "🔥", "high-ish", "null", "p9"} {
			got := ParsePriority(in)
			assert.Equal(t, PriorityMedium, got, in)
			assert.True(t, got.IsValid())
		}
	})
}

func TestMaxPriority(t *testing.T) {
	t.Run("Should keep the more severe level", func(t *testing.T) {
		assert.Equal(t, PriorityCritical, MaxPriority(PriorityHigh, PriorityCritical))
		assert.Equal(t, PriorityHigh, MaxPriority(PriorityHigh, PriorityLow))
		assert.Equal(t, PriorityMedium, MaxPriority(PriorityMedium, PriorityMedium))
	})
}
