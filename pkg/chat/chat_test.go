package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
		{Role: RoleUser, Content: "three"},
		{Role: RoleAssistant, Content: "four"},
	}

	tests := []struct {
		name  string
		n     int
		want  int
		first string
	}{
		{"full history", 10, 4, "one"},
		{"window of two", 2, 2, "three"},
		{"zero means unlimited", 0, 4, "one"},
		{"negative means unlimited", -1, 4, "one"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Window(history, tc.n)
			assert.Len(t, got, tc.want)
			if tc.want > 0 {
				assert.Equal(t, tc.first, got[0].Content)
			}
		})
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 100, CompletionTokens: 20}
	u.Add(Usage{PromptTokens: 50, CompletionTokens: 5})
	assert.Equal(t, 150, u.PromptTokens)
	assert.Equal(t, 25, u.CompletionTokens)
}
