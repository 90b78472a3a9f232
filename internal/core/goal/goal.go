// Package goal implements the goal stack described in spec §3 (GoalFrame,
// GoalStack) and §4.3; goal definitions live in package engine. The stack is persisted
// into one session slot via the shortjson codec; index 0 of the in-memory
// slice is always the top of the stack (the most recently pushed frame).
package goal

import (
	"github.com/tingiris/violet-convo/internal/core/shortjson"
)

// SessionKey is the reserved session slot the stack lives under (spec §3, §6).
const SessionKey = "convoGoalState"

const queriedFlag = "queried"

// Frame is a runtime instance of a goal on the stack.
type Frame struct {
	Key     string
	Queried bool
}

func frameFromShortJSON(f shortjson.Frame) Frame {
	return Frame{Key: f.Key, Queried: f.HasFlag(queriedFlag)}
}

func (f Frame) toShortJSON() shortjson.Frame {
	sf := shortjson.Frame{Key: f.Key}
	if f.Queried {
		sf.Flags = []string{queriedFlag}
	}
	return sf
}

// ResolveResult names the two outcomes of a resolver goal (spec §4.6 goal
// loop: "result in {true, undefined}" removes the frame). engine.Resolver
// reports the same outcome as a bool: true is Resolved, false is Pending,
// which keeps the frame in place for a future turn.
type ResolveResult int

const (
	// Resolved marks the frame's goal as satisfied; it is popped.
	Resolved ResolveResult = iota
	// Pending leaves the frame on the stack, unresolved, for next turn.
	Pending
)

// Stack is the LIFO of goal frames for one turn, backed by a session slot
// (spec §3 GoalStack, §4.3).
type Stack struct {
	frames []Frame
}

// FromSession decodes the stack out of the session's convoGoalState slot.
func FromSession(raw string) *Stack {
	sjFrames := shortjson.SJNToArr(raw)
	frames := make([]Frame, len(sjFrames))
	for i, f := range sjFrames {
		frames[i] = frameFromShortJSON(f)
	}
	return &Stack{frames: frames}
}

// Encode serializes the stack back into its ShortJSON session-slot form.
func (s *Stack) Encode() string {
	sjFrames := make([]shortjson.Frame, len(s.frames))
	for i, f := range s.frames {
		sjFrames[i] = f.toShortJSON()
	}
	return shortjson.ArrToSJN(sjFrames)
}

// Names returns the keys of every frame, top first.
func (s *Stack) Names() []string {
	names := make([]string, len(s.frames))
	for i, f := range s.frames {
		names[i] = f.Key
	}
	return names
}

// Frames returns a copy of the frame list, top first (index 0 = top).
func (s *Stack) Frames() []Frame {
	return append([]Frame(nil), s.frames...)
}

// Set replaces the entire frame list, top first.
func (s *Stack) Set(frames []Frame) {
	s.frames = append([]Frame(nil), frames...)
}

// Append pushes a new, unqueried frame for key onto the top of the stack.
func (s *Stack) Append(key string) {
	s.frames = append([]Frame{{Key: key}}, s.frames...)
}

// Contains reports whether any frame's key matches (spec §4.3).
func (s *Stack) Contains(key string) bool {
	for _, f := range s.frames {
		if f.Key == key {
			return true
		}
	}
	return false
}

// Remove removes the first (topmost, innermost) frame whose key matches,
// matching the ShortJSON leftmost-removal law (spec §8.2).
func (s *Stack) Remove(key string) {
	for i, f := range s.frames {
		if f.Key == key {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return
		}
	}
}

// Top returns the frame at the given depth (0 = most recent) and whether it
// exists.
func (s *Stack) Top(depth int) (Frame, bool) {
	if depth < 0 || depth >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[depth], true
}

// UpdateAt overwrites the frame at depth, e.g. to mark it queried.
func (s *Stack) UpdateAt(depth int, frame Frame) {
	if depth < 0 || depth >= len(s.frames) {
		return
	}
	s.frames[depth] = frame
}

// Len returns the number of frames on the stack.
func (s *Stack) Len() int { return len(s.frames) }
