package board

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrouping(t *testing.T) {
	for in, want := range map[string]Grouping{
		"status":   GroupByStatus,
		" Status ": GroupByStatus,
		"username": GroupByUsername,
		"user":     GroupByUsername,
		"PRIORITY": GroupByPriority,
	} {
		got, err := ParseGrouping(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseGrouping("title")
	assert.True(t, errors.Is(err, ErrInvalidCriterion))
	_, err = ParseGrouping("")
	assert.True(t, errors.Is(err, ErrInvalidCriterion))
}

func TestParseSorting(t *testing.T) {
	got, err := ParseSorting("Title")
	require.NoError(t, err)
	assert.Equal(t, SortByTitle, got)

	got, err = ParseSorting("priority")
	require.NoError(t, err)
	assert.Equal(t, SortByPriority, got)

	_, err = ParseSorting("status")
	assert.True(t, errors.Is(err, ErrInvalidCriterion))
}

func TestNext_Cycles(t *testing.T) {
	assert.Equal(t, GroupByUsername, GroupByStatus.Next())
	assert.Equal(t, GroupByPriority, GroupByUsername.Next())
	assert.Equal(t, GroupByStatus, GroupByPriority.Next())
	assert.Equal(t, GroupByStatus, Grouping("").Next())

	assert.Equal(t, SortByTitle, SortByPriority.Next())
	assert.Equal(t, SortByPriority, SortByTitle.Next())
	assert.Equal(t, SortByPriority, Sorting("").Next())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "User", GroupByUsername.Label())
	assert.Equal(t, "None", Grouping("").Label())
	assert.Equal(t, "Title", SortByTitle.Label())
	assert.Equal(t, "None", Sorting("x").Label())
}
