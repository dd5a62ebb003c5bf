package ordering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBetween(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{a: "", b: "", want: "a0"},
		{a: "", b: "a0", want: "Zz"},
		{a: "", b: "Zz", want: "Zy"},
		{a: "a0", b: "", want: "a1"},
		{a: "a1", b: "", want: "a2"},
		{a: "az", b: "", want: "b00"},
		{a: "Zz", b: "", want: "a0"},
		{a: "a0", b: "a1", want: "a0V"},
		{a: "a1", b: "a2", want: "a1V"},
		{a: "a0V", b: "a1", want: "a0l"},
		{a: "Zz", b: "a0", want: "ZzV"},
		{a: "Zz", b: "a01", want: "a0"},
		{a: "", b: "a0V", want: "a0"},
		{a: "b125", b: "b129", want: "b127"},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got, err := KeyBetween(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.a != "" {
				assert.Less(t, tt.a, got)
			}
			if tt.b != "" {
				assert.Less(t, got, tt.b)
			}
		})
	}
}

func TestKeyBetween_Errors(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{name: "bounds out of order", a: "a1", b: "a0"},
		{name: "equal bounds", a: "a1", b: "a1"},
		{name: "trailing zero", a: "a10", b: ""},
		{name: "invalid head", a: "!0", b: ""},
		{name: "truncated integer", a: "b1", b: ""},
		{name: "smallest integer", a: "", b: smallestInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := KeyBetween(tt.a, tt.b)
			assert.Error(t, err)
		})
	}

	_, err := KeyBetween("a10", "")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestNKeysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		n    int
	}{
		{name: "unbounded", n: 5},
		{name: "after", a: "a5", n: 10},
		{name: "before", b: "a0", n: 10},
		{name: "between", a: "a0", b: "a1", n: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := NKeysBetween(tt.a, tt.b, tt.n)
			require.NoError(t, err)
			require.Len(t, keys, tt.n)

			for i, k := range keys {
				require.NoError(t, ValidateKey(k))
				if i > 0 {
					assert.Less(t, keys[i-1], k)
				}
			}
			if tt.a != "" {
				assert.Less(t, tt.a, keys[0])
			}
			if tt.b != "" {
				assert.Less(t, keys[len(keys)-1], tt.b)
			}
		})
	}

	keys, err := NKeysBetween("", "", 0)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// Inserting before the first key, between every adjacent pair and after the
// last key must always succeed without touching existing keys.
func TestKeyBetween_InsertAnywhere(t *testing.T) {
	keys, err := NKeysBetween("", "", 4)
	require.NoError(t, err)

	for round := 0; round < 6; round++ {
		next := make([]string, 0, len(keys)*2+1)

		before, err := KeyBetween("", keys[0])
		require.NoError(t, err)
		next = append(next, before)

		for i, k := range keys {
			next = append(next, k)
			upper := ""
			if i+1 < len(keys) {
				upper = keys[i+1]
			}
			mid, err := KeyBetween(k, upper)
			require.NoError(t, err)
			next = append(next, mid)
		}

		for i := 1; i < len(next); i++ {
			require.Less(t, next[i-1], next[i], "round %d", round)
		}
		keys = next
	}
}
