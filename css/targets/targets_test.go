package targets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csspipe/css/targets"
)

func TestParse(t *testing.T) {
	b, err := targets.Parse([]string{"chrome 90", "Safari 15.4", "chrome 80", "ios 14.5.1"})
	require.NoError(t, err)

	v, ok := b.Get(targets.Chrome)
	require.True(t, ok)
	assert.Equal(t, targets.V(80, 0, 0), v, "lowest version wins")

	v, ok = b.Get(targets.Safari)
	require.True(t, ok)
	assert.Equal(t, targets.V(15, 4, 0), v)

	v, ok = b.Get(targets.IOSSafari)
	require.True(t, ok)
	assert.Equal(t, "14.5.1", v.String())

	_, ok = b.Get(targets.Firefox)
	assert.False(t, ok)

	assert.Equal(t, "chrome 80, ios_saf 14.5.1, safari 15.4", b.String())
}

func TestParse_Errors(t *testing.T) {
	for _, q := range []string{"chrome", "netscape 4", "chrome x", "chrome 0", "chrome 1.2.3.4", "firefox 300"} {
		_, err := targets.Parse([]string{q})
		require.ErrorIs(t, err, targets.ErrInvalidQuery, q)
	}
}

func TestFeature_IsCompatible(t *testing.T) {
	assert.True(t, targets.CustomMediaQueries.IsCompatible(nil))
	assert.True(t, targets.CustomMediaQueries.IsCompatible(&targets.Browsers{}))

	modern, err := targets.Parse([]string{"chrome 120", "firefox 120"})
	require.NoError(t, err)
	assert.False(t, targets.CustomMediaQueries.IsCompatible(modern))
	assert.True(t, targets.HexAlphaColors.IsCompatible(modern))
	assert.True(t, targets.Nesting.IsCompatible(modern))

	old, err := targets.Parse([]string{"chrome 120", "ie 11"})
	require.NoError(t, err)
	assert.False(t, targets.HexAlphaColors.IsCompatible(old))
	assert.False(t, old.IsEmpty())
}
