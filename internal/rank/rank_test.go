package rank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBetweenSimple(t *testing.T) {
	got, err := Default.Between("a", "c")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestBetweenCases(t *testing.T) {
	cases := []struct {
		lo, hi string
	}{
		{Min, Max},
		{"a", "b"},
		{"a", "a1"},
		{"a", "a01"},
		{"az", "b"},
		{"a", "bV"},
		{Min, "1"},
		{Min, "01"},
		{"y", Max},
		{"z", Max},
		{"zz", Max},
		{"V", "W"},
	}
	for _, tc := range cases {
		got, err := Default.Between(tc.lo, tc.hi)
		require.NoError(t, err, "between(%q, %q)", tc.lo, tc.hi)
		require.NoError(t, Validate(got))
		if tc.lo != Min {
			assert.Less(t, tc.lo, got, "between(%q, %q)", tc.lo, tc.hi)
		}
		if tc.hi != Max {
			assert.Less(t, got, tc.hi, "between(%q, %q)", tc.lo, tc.hi)
		}
	}
}

func TestBetweenRejectsBadInput(t *testing.T) {
	_, err := Default.Between("c", "a")
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = Default.Between("b", "b")
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = Default.Between("a0", "b")
	require.ErrorIs(t, err, ErrInvalidRank)

	_, err = Default.Between("a-", Max)
	require.ErrorIs(t, err, ErrInvalidRank)
}

func TestBetweenExhausted(t *testing.T) {
	a := Assigner{MaxLen: 3}
	lo, hi := "a", "b"
	var err error
	for i := 0; i < 64; i++ {
		var mid string
		mid, err = a.Between(lo, hi)
		if err != nil {
			break
		}
		hi = mid
	}
	require.ErrorIs(t, err, ErrRankExhausted)
}

func TestNextExhausted(t *testing.T) {
	a := Assigner{MaxLen: 2}
	_, err := a.Next("zz")
	require.ErrorIs(t, err, ErrRankExhausted)
}

func TestNextGrowsSlowly(t *testing.T) {
	keys, err := Default.Sequence(500)
	require.NoError(t, err)
	require.Len(t, keys, 500)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
	assert.LessOrEqual(t, len(keys[len(keys)-1]), 20)
}

func TestMoveToHeadChangesOnlyMovedKey(t *testing.T) {
	keys, err := Default.Sequence(5)
	require.NoError(t, err)
	before := append([]string(nil), keys...)

	moved := keys[2]
	rest := append(append([]string(nil), keys[:2]...), keys[3:]...)
	got, err := Default.Move(rest, 0)
	require.NoError(t, err)
	assert.NotEqual(t, moved, got)
	assert.Less(t, got, rest[0])

	assert.Equal(t, before, keys)
}

func TestMoveClampsPosition(t *testing.T) {
	got, err := Default.Move([]string{"a", "b"}, 99)
	require.NoError(t, err)
	assert.Greater(t, got, "b")

	got, err = Default.Move(nil, -3)
	require.NoError(t, err)
	assert.Equal(t, "V", got)
}

func keyGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		n := rapid.IntRange(1, 8).Draw(t, "len")
		var b strings.Builder
		for i := 0; i < n-1; i++ {
			b.WriteByte(Digits[rapid.IntRange(0, base-1).Draw(t, "digit")])
		}
		b.WriteByte(Digits[rapid.IntRange(1, base-1).Draw(t, "last")])
		return b.String()
	})
}

func TestBetweenProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := keyGen().Draw(t, "a")
		b := keyGen().Draw(t, "b")
		if a == b {
			t.Skip("equal keys")
		}
		if a > b {
			a, b = b, a
		}
		got, err := Default.Between(a, b)
		if err != nil {
			t.Fatalf("between(%q, %q): %v", a, b, err)
		}
		if !(a < got && got < b) {
			t.Fatalf("between(%q, %q) = %q", a, b, got)
		}
		if err := Validate(got); err != nil {
			t.Fatalf("between(%q, %q) = %q: %v", a, b, got, err)
		}
	})
}

func TestNextProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := keyGen().Draw(t, "r")
		got, err := Default.Next(r)
		if err != nil {
			t.Fatalf("next(%q): %v", r, err)
		}
		if got <= r {
			t.Fatalf("next(%q) = %q", r, got)
		}
	})
}

func TestPrevProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := keyGen().Draw(t, "r")
		got, err := Default.Prev(r)
		if err != nil {
			t.Fatalf("prev(%q): %v", r, err)
		}
		if got >= r {
			t.Fatalf("prev(%q) = %q", r, got)
		}
		if err := Validate(got); err != nil {
			t.Fatalf("prev(%q) = %q: %v", r, got, err)
		}
	})
}

func TestMoveToEdgesStepsFromNeighbour(t *testing.T) {
	keys, err := Default.Sequence(3)
	require.NoError(t, err)

	head, err := Default.Move(keys, 0)
	require.NoError(t, err)
	prev, err := Default.Prev(keys[0])
	require.NoError(t, err)
	assert.Equal(t, prev, head)

	tail, err := Default.Move(keys, len(keys))
	require.NoError(t, err)
	next, err := Default.Next(keys[2])
	require.NoError(t, err)
	assert.Equal(t, next, tail)
	assert.Len(t, tail, len(keys[2]), "appending does not grow the key")
}
