package docid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSlugID(t *testing.T) {
	t.Run("generates valid slug", func(t *testing.T) {
		slug := NewSlugID()
		assert.Len(t, slug, SlugIDLength)
		assert.True(t, IsValidSlugID(slug))
	})

	t.Run("generates distinct slugs", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			seen[NewSlugID()] = true
		}
		// Collisions are possible in theory but not at this sample size.
		assert.Len(t, seen, 1000)
	})

	t.Run("every position varies", func(t *testing.T) {
		seen := make([]map[byte]bool, SlugIDLength)
		for i := range seen {
			seen[i] = make(map[byte]bool)
		}
		for i := 0; i < 2000; i++ {
			slug := NewSlugID()
			for pos := 0; pos < SlugIDLength; pos++ {
				seen[pos][slug[pos]] = true
			}
		}
		for pos, chars := range seen {
			assert.Greater(t, len(chars), 50, "position %d draws from the whole alphabet", pos)
		}
	})
}

func TestIsValidSlugID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "valid", input: "Xk29aP0qLm", want: true},
		{name: "too short", input: "Xk29", want: false},
		{name: "too long", input: "Xk29aP0qLmZ", want: false},
		{name: "invalid character", input: "Xk29aP0q-m", want: false},
		{name: "empty", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidSlugID(tt.input))
		})
	}
}

func TestRandomGenerator(t *testing.T) {
	gen := NewRandomGenerator()

	id1 := gen.NewUUID()
	id2 := gen.NewUUID()
	assert.NotEmpty(t, id1.String())
	assert.NotEqual(t, id1.String(), id2.String())
	assert.True(t, IsValidSlugID(gen.NewSlugID()))
}
