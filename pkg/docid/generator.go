package docid

import (
	"crypto/rand"
)

// slugAlphabet is the set of characters a slug ID is drawn from.
const slugAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// SlugIDLength is the length of generated slug IDs.
const SlugIDLength = 10

// Generator produces fresh page identifiers.
type Generator interface {
	// NewUUID returns a new page UUID.
	NewUUID() UUID

	// NewSlugID returns a new short slug identifier.
	NewSlugID() string
}

// RandomGenerator generates random (v4) UUIDs and slug IDs.
type RandomGenerator struct{}

// NewRandomGenerator returns a Generator backed by random UUIDs.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// NewUUID implements Generator.
func (g *RandomGenerator) NewUUID() UUID {
	return NewUUID()
}

// NewSlugID implements Generator.
func (g *RandomGenerator) NewSlugID() string {
	return NewSlugID()
}

// slugByteLimit is the largest multiple of the alphabet size that fits in a
// byte. Random bytes at or above it are discarded so every character is
// equally likely.
const slugByteLimit = 256 - 256%len(slugAlphabet)

// NewSlugID returns a random slug ID of SlugIDLength base-62 characters.
func NewSlugID() string {
	slug := make([]byte, 0, SlugIDLength)
	buf := make([]byte, SlugIDLength*2)
	for len(slug) < SlugIDLength {
		// crypto/rand.Read never returns an error.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= slugByteLimit {
				continue
			}
			slug = append(slug, slugAlphabet[int(b)%len(slugAlphabet)])
			if len(slug) == SlugIDLength {
				break
			}
		}
	}
	return string(slug)
}

// IsValidSlugID reports whether s looks like a slug ID produced by NewSlugID.
func IsValidSlugID(s string) bool {
	if len(s) != SlugIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isDigit := c >= '0' && c <= '9'
		isUpper := c >= 'A' && c <= 'Z'
		isLower := c >= 'a' && c <= 'z'
		if !isDigit && !isUpper && !isLower {
			return false
		}
	}
	return true
}
