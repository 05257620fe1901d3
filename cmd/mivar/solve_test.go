package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectQueries(t *testing.T) {
	t.Cleanup(func() {
		queryPaths, knownFlags, targetFlags = nil, nil, nil
	})

	t.Run("flags", func(t *testing.T) {
		queryPaths = nil
		knownFlags = []string{"A/x=3", "A/name=bob", "A/list=[1, 2]"}
		targetFlags = []string{"A/y"}

		queries, err := collectQueries()
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, 3, queries[0].Known["A/x"])
		assert.Equal(t, "bob", queries[0].Known["A/name"])
		assert.Equal(t, []any{1, 2}, queries[0].Known["A/list"])
		assert.Equal(t, []string{"A/y"}, queries[0].Targets)
	})

	t.Run("query file", func(t *testing.T) {
		queryPaths = []string{"../../internal/kbfile/testdata/triangle.query.yaml"}
		knownFlags, targetFlags = nil, nil

		queries, err := collectQueries()
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Len(t, queries[0].Targets, 2)
	})

	t.Run("errors", func(t *testing.T) {
		queryPaths = nil
		knownFlags, targetFlags = []string{"A/x"}, []string{"A/y"}
		_, err := collectQueries()
		assert.Error(t, err)

		knownFlags, targetFlags = []string{"A/x=1"}, nil
		_, err = collectQueries()
		assert.Error(t, err)

		knownFlags, targetFlags = nil, nil
		_, err = collectQueries()
		assert.Error(t, err)
	})
}
