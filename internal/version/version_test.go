package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short, Full and UserAgent agree on the version.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Equal(t, "sos-beacon/"+Short(), UserAgent())
}
