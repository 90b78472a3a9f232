// Package shortjson implements the compact textual encoding used to persist
// the goal stack inside a single session slot (spec §4.1, §6
// "convoGoalState"). A frame is written as "key:flagA:flagB"; only true
// flags are emitted. Frames are separated by ';'.
package shortjson

import (
	"regexp"
	"strings"
)

// Frame is one flag-object in the encoded list: a key plus the set of flags
// that are currently true. Flag order is preserved so encoding is
// deterministic (needed for the round-trip law in spec §8.1).
type Frame struct {
	Key   string
	Flags []string
}

// HasFlag reports whether the given flag is set on the frame.
func (f Frame) HasFlag(name string) bool {
	for _, flag := range f.Flags {
		if flag == name {
			return true
		}
	}
	return false
}

// WithFlag returns a copy of f with name added (no-op if already present).
func (f Frame) WithFlag(name string) Frame {
	if f.HasFlag(name) {
		return f
	}
	out := Frame{Key: f.Key, Flags: make([]string, len(f.Flags), len(f.Flags)+1)}
	copy(out.Flags, f.Flags)
	out.Flags = append(out.Flags, name)
	return out
}

var keyFlagPattern = regexp.MustCompile(`^[A-Za-z]+(?::[a-z]+)*$`)

// ArrToSJN encodes a frame list into its ShortJSON string form.
func ArrToSJN(frames []Frame) string {
	parts := make([]string, 0, len(frames))
	for _, f := range frames {
		var b strings.Builder
		b.WriteString(f.Key)
		for _, flag := range f.Flags {
			b.WriteByte(':')
			b.WriteString(flag)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ";")
}

// SJNToArr decodes a ShortJSON string back into a frame list. Empty input
// decodes to an empty list.
func SJNToArr(s string) []Frame {
	if s == "" {
		return nil
	}
	rawFrames := strings.Split(s, ";")
	frames := make([]Frame, 0, len(rawFrames))
	for _, raw := range rawFrames {
		if raw == "" {
			continue
		}
		segs := strings.Split(raw, ":")
		frame := Frame{Key: segs[0]}
		if len(segs) > 1 {
			frame.Flags = append([]string(nil), segs[1:]...)
		}
		frames = append(frames, frame)
	}
	return frames
}

// Push appends a new frame to the encoded string.
func Push(s string, f Frame) string {
	frames := SJNToArr(s)
	frames = append(frames, f)
	return ArrToSJN(frames)
}

// Contains reports whether key appears as a whole word anywhere in the
// encoded string, per spec's `\bkey\b` regex rule; a flag with the same
// name also matches.
func Contains(s string, key string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(key) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// Remove deletes the first `key(:flag)*` run from the encoded string and
// collapses the adjacent ';' separators it leaves behind, preserving
// round-trip fidelity for the remaining frames (spec §8.2, leftmost
// removal).
func Remove(s string, key string) string {
	frames := SJNToArr(s)
	out := make([]Frame, 0, len(frames))
	removed := false
	for _, f := range frames {
		if !removed && f.Key == key {
			removed = true
			continue
		}
		out = append(out, f)
	}
	return ArrToSJN(out)
}

// Valid reports whether s is a well-formed ShortJSON string: ASCII keys
// matching [A-Za-z]+ and flags matching [a-z]+, per spec's codec guarantee.
func Valid(s string) bool {
	if s == "" {
		return true
	}
	for _, raw := range strings.Split(s, ";") {
		if raw == "" || !keyFlagPattern.MatchString(raw) {
			return false
		}
	}
	return true
}
