package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendIsTopmost(t *testing.T) {
	s := &Stack{}
	s.Append("a")
	s.Append("b")

	top, ok := s.Top(0)
	require.True(t, ok)
	assert.Equal(t, "b", top.Key)

	second, ok := s.Top(1)
	require.True(t, ok)
	assert.Equal(t, "a", second.Key)
}

func TestRemoveTopmostFirst(t *testing.T) {
	s := &Stack{}
	s.Append("x")
	s.Append("dup")
	s.Append("dup")

	s.Remove("dup")
	names := s.Names()
	require.Len(t, names, 2)
	assert.Equal(t, "dup", names[0])
	assert.Equal(t, "x", names[1])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := &Stack{}
	s.Append("a")
	s.Append("b")
	frame, _ := s.Top(0)
	frame.Queried = true
	s.UpdateAt(0, frame)

	encoded := s.Encode()
	restored := FromSession(encoded)

	assert.Equal(t, s.Names(), restored.Names())
	top, ok := restored.Top(0)
	require.True(t, ok)
	assert.True(t, top.Queried)
}

func TestFromSessionEmpty(t *testing.T) {
	s := FromSession("")
	assert.Equal(t, 0, s.Len())
}

func TestContains(t *testing.T) {
	s := &Stack{}
	s.Append("a")
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("b"))
}
