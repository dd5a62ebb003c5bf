// Package ordering assigns fractional-index position keys to sibling pages.
//
// Keys are base-62 strings made of an integer part (a head character that
// encodes its length followed by that many digits) and an optional
// fractional part. Keys compare bytewise, and a key can always be generated
// strictly between any two existing keys, so inserting a page never requires
// rewriting the positions of its siblings.
package ordering

import (
	"errors"
	"fmt"
	"strings"
)

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	zeroDigit = '0'
	lastDigit = 'z'

	// integerZero is the key returned when there are no bounds.
	integerZero = "a0"

	// smallestInteger is the lowest integer part. It is not a valid key by
	// itself since nothing could be placed before it.
	smallestInteger = "A00000000000000000000000000"
)

// ErrInvalidKey is wrapped by every key validation error.
var ErrInvalidKey = errors.New("invalid order key")

// KeyBetween returns a key strictly between a and b. An empty a means no
// lower bound and an empty b means no upper bound.
func KeyBetween(a, b string) (string, error) {
	if a != "" {
		if err := ValidateKey(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := ValidateKey(b); err != nil {
			return "", err
		}
	}
	if a != "" && b != "" && a >= b {
		return "", fmt.Errorf("lower bound %q is not below upper bound %q", a, b)
	}

	if a == "" {
		if b == "" {
			return integerZero, nil
		}
		ib, err := integerPart(b)
		if err != nil {
			return "", err
		}
		fb := b[len(ib):]
		if ib == smallestInteger {
			mid, err := midpoint("", fb)
			if err != nil {
				return "", err
			}
			return ib + mid, nil
		}
		if ib < b {
			return ib, nil
		}
		res, ok := decrementInteger(ib)
		if !ok {
			return "", errors.New("cannot generate a key below the smallest integer")
		}
		return res, nil
	}

	ia, err := integerPart(a)
	if err != nil {
		return "", err
	}
	fa := a[len(ia):]

	if b == "" {
		if i, ok := incrementInteger(ia); ok {
			return i, nil
		}
		mid, err := midpoint(fa, "")
		if err != nil {
			return "", err
		}
		return ia + mid, nil
	}

	ib, err := integerPart(b)
	if err != nil {
		return "", err
	}
	fb := b[len(ib):]
	if ia == ib {
		mid, err := midpoint(fa, fb)
		if err != nil {
			return "", err
		}
		return ia + mid, nil
	}

	i, ok := incrementInteger(ia)
	if !ok {
		return "", errors.New("cannot increment beyond the largest integer")
	}
	if i < b {
		return i, nil
	}
	mid, err := midpoint(fa, "")
	if err != nil {
		return "", err
	}
	return ia + mid, nil
}

// NKeysBetween returns n increasing keys strictly between a and b.
func NKeysBetween(a, b string, n int) ([]string, error) {
	switch {
	case n <= 0:
		return nil, nil
	case n == 1:
		k, err := KeyBetween(a, b)
		if err != nil {
			return nil, err
		}
		return []string{k}, nil
	}

	if b == "" {
		keys := make([]string, 0, n)
		prev := a
		for i := 0; i < n; i++ {
			k, err := KeyBetween(prev, "")
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			prev = k
		}
		return keys, nil
	}

	if a == "" {
		keys := make([]string, n)
		next := b
		for i := n - 1; i >= 0; i-- {
			k, err := KeyBetween("", next)
			if err != nil {
				return nil, err
			}
			keys[i] = k
			next = k
		}
		return keys, nil
	}

	mid := n / 2
	c, err := KeyBetween(a, b)
	if err != nil {
		return nil, err
	}
	before, err := NKeysBetween(a, c, mid)
	if err != nil {
		return nil, err
	}
	after, err := NKeysBetween(c, b, n-mid-1)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, n)
	keys = append(keys, before...)
	keys = append(keys, c)
	return append(keys, after...), nil
}

// ValidateKey reports whether key is a well-formed order key.
func ValidateKey(key string) error {
	if key == smallestInteger {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for i := 0; i < len(key); i++ {
		if strings.IndexByte(digits, key[i]) < 0 {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidKey, key, key[i])
		}
	}
	i, err := integerPart(key)
	if err != nil {
		return err
	}
	if f := key[len(i):]; f != "" && f[len(f)-1] == zeroDigit {
		return fmt.Errorf("%w: %q has a trailing zero", ErrInvalidKey, key)
	}
	return nil
}

// midpoint returns a fractional part strictly between a and b, where b == ""
// means no upper bound. Neither may end in a zero digit.
func midpoint(a, b string) (string, error) {
	if b != "" && a >= b {
		return "", fmt.Errorf("%w: %q is not below %q", ErrInvalidKey, a, b)
	}
	if (a != "" && a[len(a)-1] == zeroDigit) || (b != "" && b[len(b)-1] == zeroDigit) {
		return "", fmt.Errorf("%w: trailing zero", ErrInvalidKey)
	}

	if b != "" {
		// Skip the common prefix, treating a as padded with zeros.
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(a) {
				rest = a[n:]
			}
			mid, err := midpoint(rest, b[n:])
			if err != nil {
				return "", err
			}
			return b[:n] + mid, nil
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(digits, a[0])
	}
	digitB := len(digits)
	if b != "" {
		digitB = strings.IndexByte(digits, b[0])
	}

	if digitB-digitA > 1 {
		return string(digits[(digitA+digitB+1)/2]), nil
	}
	if len(b) > 1 {
		return b[:1], nil
	}

	rest := ""
	if a != "" {
		rest = a[1:]
	}
	mid, err := midpoint(rest, "")
	if err != nil {
		return "", err
	}
	return string(digits[digitA]) + mid, nil
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return zeroDigit
}

func integerLength(head byte) (int, error) {
	switch {
	case head >= 'a' && head <= 'z':
		return int(head-'a') + 2, nil
	case head >= 'A' && head <= 'Z':
		return int('Z'-head) + 2, nil
	default:
		return 0, fmt.Errorf("%w: invalid integer head %q", ErrInvalidKey, head)
	}
}

func integerPart(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	n, err := integerLength(key[0])
	if err != nil {
		return "", err
	}
	if n > len(key) {
		return "", fmt.Errorf("%w: %q is shorter than its integer part", ErrInvalidKey, key)
	}
	return key[:n], nil
}

// incrementInteger returns the next integer part. It reports false when x is
// the largest representable integer.
func incrementInteger(x string) (string, bool) {
	head, digs := x[0], []byte(x[1:])

	carry := true
	for i := len(digs) - 1; carry && i >= 0; i-- {
		d := strings.IndexByte(digits, digs[i]) + 1
		if d == len(digits) {
			digs[i] = zeroDigit
		} else {
			digs[i] = digits[d]
			carry = false
		}
	}
	if !carry {
		return string(head) + string(digs), true
	}

	switch head {
	case 'Z':
		return "a" + string(zeroDigit), true
	case 'z':
		return "", false
	}
	h := head + 1
	if h > 'a' {
		digs = append(digs, zeroDigit)
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}

// decrementInteger returns the previous integer part. It reports false when x
// is the smallest representable integer.
func decrementInteger(x string) (string, bool) {
	head, digs := x[0], []byte(x[1:])

	borrow := true
	for i := len(digs) - 1; borrow && i >= 0; i-- {
		d := strings.IndexByte(digits, digs[i]) - 1
		if d == -1 {
			digs[i] = lastDigit
		} else {
			digs[i] = digits[d]
			borrow = false
		}
	}
	if !borrow {
		return string(head) + string(digs), true
	}

	switch head {
	case 'a':
		return "Z" + string(lastDigit), true
	case 'A':
		return "", false
	}
	h := head - 1
	if h < 'Z' {
		digs = append(digs, lastDigit)
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}
