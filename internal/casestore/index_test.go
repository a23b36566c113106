package casestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexListsAndRefreshesOnInvalidate(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.SaveCase(sampleCase("aaaaaaaa")))

	idx := NewIndex(store, nil)
	defer idx.Close()

	summaries, err := idx.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "aaaaaaaa", summaries[0].ID)

	require.NoError(t, store.SaveCase(sampleCase("bbbbbbbb")))
	idx.Invalidate()

	summaries, err = idx.List()
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}
