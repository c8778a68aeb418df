package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestYAMLHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		render   func(h *YAMLHandler[stackRow]) error
		expected string
	}{
		{
			name: "results",
			render: func(h *YAMLHandler[stackRow]) error {
				return h.HandleResults(stackRow{Name: "Site", Region: "us-east-1"})
			},
			expected: "results:\n  - name: Site\n    region: us-east-1\n",
		},
		{
			name:     "no results",
			render:   func(h *YAMLHandler[stackRow]) error { return h.HandleResults() },
			expected: "results: []\n",
		},
		{
			name:     "single result",
			render:   func(h *YAMLHandler[stackRow]) error { return h.HandleResult(stackRow{Name: "Site", Region: "us-east-1"}) },
			expected: "result:\n  name: Site\n  region: us-east-1\n",
		},
		{
			name:     "error",
			render:   func(h *YAMLHandler[stackRow]) error { return h.HandleError(errors.New("stack not found")) },
			expected: "error: stack not found\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			h := NewYAMLHandler[stackRow](&buf, 2)
			require.Same(t, &buf, h.Writer())
			require.NoError(t, tc.render(h))
			require.Equal(t, tc.expected, buf.String())
		})
	}
}
