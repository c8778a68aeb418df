package logs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/construct"
)

func TestNewLogGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		props    LogGroupProps
		expected map[string]any
		err      error
	}{
		{
			name:     "default retention",
			props:    LogGroupProps{},
			expected: map[string]any{"RetentionInDays": DefaultRetentionDays},
		},
		{
			name:     "named",
			props:    LogGroupProps{LogGroupName: "/aws/lambda/fn", RetentionDays: 14},
			expected: map[string]any{"RetentionInDays": 14, "LogGroupName": "/aws/lambda/fn"},
		},
		{
			name:  "unsupported retention",
			props: LogGroupProps{RetentionDays: 2},
			err:   ErrInvalidRetention,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			app := construct.NewApp(construct.AppProps{})
			stack, err := construct.NewStack(app, "Stack", construct.StackProps{})
			require.NoError(t, err)

			group, err := NewLogGroup(stack, "Logs", tc.props)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)

			asm, err := app.Synth()
			require.NoError(t, err)

			def := asm.Stacks[0].Template.Resources[group.Resource().LogicalID()]
			require.Equal(t, "AWS::Logs::LogGroup", def.Type)
			require.Equal(t, tc.expected, def.Properties)
			require.Equal(t, construct.DeletionPolicyRetain, def.DeletionPolicy)
		})
	}
}
