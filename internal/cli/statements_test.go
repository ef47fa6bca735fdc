package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStatements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "one per line",
			input: "SELECT u.name FROM User u\nSELECT p.phonenumber FROM Phonenumber p\n",
			want:  []string{"SELECT u.name FROM User u", "SELECT p.phonenumber FROM Phonenumber p"},
		},
		{
			name:  "comments and blank lines",
			input: "-- users\n\n# phones\n  SELECT u.name FROM User u  \n\n",
			want:  []string{"SELECT u.name FROM User u"},
		},
		{
			name:  "continuation",
			input: "SELECT u.name \\\n  FROM User u \\\n  WHERE u.id = 1;\n",
			want:  []string{"SELECT u.name FROM User u WHERE u.id = 1"},
		},
		{
			name:  "continuation at end of input",
			input: "SELECT u.name \\\n",
			want:  []string{"SELECT u.name"},
		},
		{
			name:  "comment inside continuation is kept",
			input: "SELECT u.name \\\n-- x\n",
			want:  []string{"SELECT u.name -- x"},
		},
		{
			name:  "empty",
			input: "-- nothing\n",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readStatements(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatements(t *testing.T) {
	t.Parallel()
	got, err := statements([]string{"SELECT u.name FROM User u"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT u.name FROM User u"}, got)

	got, err = statements(nil, "-", strings.NewReader("SELECT u.name FROM User u;\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT u.name FROM User u"}, got)

	_, err = statements(nil, "-", strings.NewReader("\n"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no statements in -")
}
