package permute

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

func TestExpandNone(t *testing.T) {
	got, err := Expand(domain.PermutationNone, "123")
	require.NoError(t, err)
	assert.Equal(t, []string{"123"}, got)
}

func TestExpandPair(t *testing.T) {
	for n := 0; n < 100; n++ {
		num := fmt.Sprintf("%02d", n)
		got, err := Expand(domain.PermutationPair, num)
		require.NoError(t, err)

		if num[0] == num[1] {
			assert.Len(t, got, 1, num)
		} else {
			assert.Len(t, got, 2, num)
		}
		assert.Contains(t, got, num)
		assertFixedPoint(t, domain.PermutationPair, got)
	}
}

func TestExpandTripleSizes(t *testing.T) {
	cases := map[string]int{"111": 1, "121": 3, "112": 3, "123": 6, "907": 6}
	for num, want := range cases {
		got, err := Expand(domain.PermutationTriple, num)
		require.NoError(t, err)
		assert.Len(t, got, want, num)
	}

	for n := 0; n < 1000; n++ {
		num := fmt.Sprintf("%03d", n)
		got, err := Expand(domain.PermutationTriple, num)
		require.NoError(t, err)
		assert.Contains(t, []int{1, 3, 6}, len(got), num)
		assertFixedPoint(t, domain.PermutationTriple, got)
	}
}

func TestExpandQuadTodeSizes(t *testing.T) {
	cases := map[string]int{"1111": 1, "1112": 4, "1122": 6, "1123": 12, "1234": 24}
	for num, want := range cases {
		got, err := Expand(domain.PermutationQuadTode, num)
		require.NoError(t, err)
		assert.Len(t, got, want, num)
	}

	for n := 0; n < 10000; n += 7 {
		num := fmt.Sprintf("%04d", n)
		got, err := Expand(domain.PermutationQuadTode, num)
		require.NoError(t, err)
		assert.Contains(t, []int{1, 4, 6, 12, 24}, len(got), num)
	}
}

func TestExpandDeterministic(t *testing.T) {
	a, err := Expand(domain.PermutationQuadTode, "4312")
	require.NoError(t, err)
	b, err := Expand(domain.PermutationQuadTode, "2134")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, sort.StringsAreSorted(a))

	for _, n := range a {
		assert.Len(t, n, 4)
		assert.ElementsMatch(t, []byte("1234"), sortedBytes(n))
	}
}

func TestExpandRejectsBadInput(t *testing.T) {
	_, err := Expand(domain.PermutationPair, "123")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Expand(domain.PermutationTriple, "1a3")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Expand(domain.PermutationNone, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Expand("sextuple", "12")
	assert.Error(t, err)
}

func assertFixedPoint(t *testing.T, class domain.PermutationClass, set []string) {
	t.Helper()
	union := map[string]bool{}
	for _, n := range set {
		again, err := Expand(class, n)
		require.NoError(t, err)
		for _, m := range again {
			union[m] = true
		}
	}
	assert.Len(t, union, len(set))
	for _, n := range set {
		assert.True(t, union[n])
	}
}

func sortedBytes(s string) []byte {
	b := []byte(s)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return b
}
