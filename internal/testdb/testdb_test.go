package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RECIPES_DATABASE_URL", "")
	assert.Empty(t, URL())
	assert.True(t, ShouldSkip())

	t.Setenv("RECIPES_DATABASE_URL", "postgres://localhost/recipes_test")
	assert.Equal(t, "postgres://localhost/recipes_test", URL())
	assert.False(t, ShouldSkip())

	t.Setenv("DATABASE_URL", "postgres://localhost/primary")
	assert.Equal(t, "postgres://localhost/primary", URL())
}

func TestOpen_SkipsWithoutURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RECIPES_DATABASE_URL", "")

	skipped := false
	t.Run("inner", func(t *testing.T) {
		defer func() { skipped = t.Skipped() }()
		Open(t)
		t.Error("Open should have skipped")
	})
	assert.True(t, skipped)
}
