package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogIsWellFormed(t *testing.T) {
	characters := Characters()
	assert.NotEmpty(t, characters)

	slugs := make(map[string]bool)
	for _, c := range characters {
		assert.False(t, slugs[c.Slug], "duplicate slug %q", c.Slug)
		slugs[c.Slug] = true

		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Bio)
		assert.NotEmpty(t, c.SystemPrompt)
		assert.NotEmpty(t, c.AccentColor)
	}
	assert.True(t, slugs["gandalf"])
}
