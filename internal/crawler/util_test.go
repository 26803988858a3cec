package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"real_estate", "real-estate"},
		{"Machine Learning", "machine-learning"},
		{"  spaced  out  ", "spaced-out"},
		{"C++ & Go!", "c-go"},
		{"already-slugged", "already-slugged"},
		{"", ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}
