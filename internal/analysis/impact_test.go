package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mivar/internal/kb"
	"mivar/internal/kbtest"
)

func TestAnalyzer_Requirements(t *testing.T) {
	a, err := NewAnalyzer(kbtest.Triangle(t))
	require.NoError(t, err)

	t.Run("unlimited", func(t *testing.T) {
		r, err := a.Requirements(kbtest.Area, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{kbtest.HalfPer, kbtest.SideA, kbtest.SideB, kbtest.SideC}, r.Direct)
		assert.Equal(t, []string{kbtest.Perimeter}, r.Indirect)
		assert.Equal(t, 2, r.Hops[kbtest.Perimeter])
	})

	t.Run("one hop", func(t *testing.T) {
		r, err := a.Requirements(kbtest.Area, 1)
		require.NoError(t, err)
		assert.Len(t, r.Direct, 4)
		assert.Empty(t, r.Indirect)
	})

	t.Run("leaf", func(t *testing.T) {
		r, err := a.Requirements(kbtest.SideA, 0)
		require.NoError(t, err)
		assert.Empty(t, r.All())
	})
}

func TestAnalyzer_Impact(t *testing.T) {
	a, err := NewAnalyzer(kbtest.Triangle(t))
	require.NoError(t, err)

	r, err := a.Impact(kbtest.SideA, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{kbtest.Perimeter, kbtest.Area}, r.Direct)
	assert.Equal(t, []string{kbtest.HalfPer}, r.Indirect)

	_, err = a.Impact("Triangle/Sides/z", 0)
	assert.ErrorIs(t, err, kb.ErrNotFound)
}
