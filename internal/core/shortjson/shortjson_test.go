package shortjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]Frame{
		nil,
		{{Key: "airline"}},
		{{Key: "airline", Flags: []string{"queried"}}},
		{{Key: "a", Flags: []string{"x", "y"}}, {Key: "b"}, {Key: "c", Flags: []string{"z"}}},
	}
	for _, frames := range cases {
		encoded := ArrToSJN(frames)
		decoded := SJNToArr(encoded)
		if len(frames) == 0 {
			assert.Empty(t, decoded)
			continue
		}
		require.Equal(t, len(frames), len(decoded))
		for i := range frames {
			assert.Equal(t, frames[i].Key, decoded[i].Key)
			assert.Equal(t, frames[i].Flags, decoded[i].Flags)
		}
	}
}

func TestRemoveIsLeftmost(t *testing.T) {
	encoded := ArrToSJN([]Frame{{Key: "dup"}, {Key: "other"}, {Key: "dup", Flags: []string{"queried"}}})
	out := Remove(encoded, "dup")
	decoded := SJNToArr(out)

	require.Len(t, decoded, 2)
	assert.Equal(t, "other", decoded[0].Key)
	assert.Equal(t, "dup", decoded[1].Key)
	assert.Equal(t, []string{"queried"}, decoded[1].Flags)
}

func TestContains(t *testing.T) {
	encoded := ArrToSJN([]Frame{{Key: "airline"}, {Key: "airlineDetails"}})
	assert.True(t, Contains(encoded, "airline"))
	assert.True(t, Contains(encoded, "airlineDetails"))
	assert.False(t, Contains(encoded, "air"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(""))
	assert.True(t, Valid("airline:queried"))
	assert.True(t, Valid("a:x:y;b;c:z"))
	assert.False(t, Valid("123bad"))
	assert.False(t, Valid("bad:FLAG"))
}

func TestWithFlag(t *testing.T) {
	f := Frame{Key: "airline"}
	g := f.WithFlag("queried")
	assert.False(t, f.HasFlag("queried"))
	assert.True(t, g.HasFlag("queried"))
	assert.True(t, g.WithFlag("queried").HasFlag("queried"))
	assert.Len(t, g.WithFlag("queried").Flags, 1)
}

func TestPush(t *testing.T) {
	encoded := Push("", Frame{Key: "a"})
	encoded = Push(encoded, Frame{Key: "b", Flags: []string{"queried"}})
	decoded := SJNToArr(encoded)
	require.Len(t, decoded, 2)
	assert.Equal(t, "a", decoded[0].Key)
	assert.Equal(t, "b", decoded[1].Key)
}
