package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jirabridge/jirabridge/internal/application"
)

func TestMatcher_ExactMatchCaseInsensitive(t *testing.T) {
	m := application.NewMatcher([]string{"Story", "Bug"})

	got, ok := m.Match("bug")
	assert.True(t, ok)
	assert.Equal(t, "Bug", got)

	got, ok = m.Match("Story")
	assert.True(t, ok)
	assert.Equal(t, "Story", got)
}

func TestMatcher_FuzzyMatch(t *testing.T) {
	m := application.NewMatcher([]string{"backend", "frontend", "devops"})

	got, ok := m.Match("bcknd")
	assert.True(t, ok)
	assert.Equal(t, "backend", got)

	got, ok = m.Match("dvops")
	assert.True(t, ok)
	assert.Equal(t, "devops", got)
}

func TestMatcher_NoPlausibleMatch(t *testing.T) {
	m := application.NewMatcher([]string{"Story", "Bug"})

	_, ok := m.Match("xyzzy")
	assert.False(t, ok)
}

func TestMatcher_EmptyLabel(t *testing.T) {
	m := application.NewMatcher([]string{"Story", "Bug"})

	_, ok := m.Match("   ")
	assert.False(t, ok)
}

func TestMatcher_Choices(t *testing.T) {
	choices := []string{"Story", "Bug"}
	m := application.NewMatcher(choices)

	got := m.Choices()
	assert.Equal(t, choices, got)

	// Mutating the returned slice must not affect the matcher.
	got[0] = "mutated"
	again, ok := m.Match("story")
	assert.True(t, ok)
	assert.Equal(t, "Story", again)
}
