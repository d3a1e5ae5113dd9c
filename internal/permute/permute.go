// Package permute expands an entered number into every distinct ordering of
// its digits. All functions are pure.
package permute

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

var classLen = map[domain.PermutationClass]int{
	domain.PermutationPair:     2,
	domain.PermutationTriple:   3,
	domain.PermutationQuadTode: 4,
}

// Expand returns the candidate numbers for number under class. PermutationNone
// yields the number itself; the other classes yield the distinct
// permutations of its digits in ascending order, so the result depends only
// on the digit multiset.
func Expand(class domain.PermutationClass, number string) ([]string, error) {
	if err := digitsOnly(number); err != nil {
		return nil, err
	}
	switch class {
	case domain.PermutationNone, "":
		return []string{number}, nil
	case domain.PermutationPair, domain.PermutationTriple, domain.PermutationQuadTode:
		if want := classLen[class]; len(number) != want {
			return nil, fmt.Errorf("%w: %s expansion needs %d digits, got %q", domain.ErrValidation, class, want, number)
		}
		return Distinct(number), nil
	default:
		return nil, fmt.Errorf("permute: unknown class %q", class)
	}
}

// Distinct returns every distinct permutation of the digits of number in
// ascending lexicographic order.
func Distinct(number string) []string {
	digits := []byte(number)
	sort.Slice(digits, func(i, j int) bool { return digits[i] < digits[j] })

	out := []string{string(digits)}
	for nextPermutation(digits) {
		out = append(out, string(digits))
	}
	return out
}

// nextPermutation rearranges b into the next lexicographically greater
// ordering and reports whether one existed. Repeated digits never produce a
// repeated ordering.
func nextPermutation(b []byte) bool {
	i := len(b) - 2
	for i >= 0 && b[i] >= b[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(b) - 1
	for b[j] <= b[i] {
		j--
	}
	b[i], b[j] = b[j], b[i]
	for l, r := i+1, len(b)-1; l < r; l, r = l+1, r-1 {
		b[l], b[r] = b[r], b[l]
	}
	return true
}

func digitsOnly(number string) error {
	if number == "" {
		return fmt.Errorf("%w: empty number", domain.ErrValidation)
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return fmt.Errorf("%w: %q is not numeric", domain.ErrValidation, number)
		}
	}
	return nil
}
