// Package output implements the OutputManager component (spec §4.4): it
// accumulates say/prompt/ask fragments over one turn and composes them into
// a single spoken reply with pauses, prosody, and a session-close flag.
package output

import (
	"regexp"
	"strings"
)

const pause = `<break time="500ms"/>`

// Interpolator resolves `{{var}}` references against whatever store backs
// them for this turn — session variables, slot aliases, or persistent
// record fields (spec §4.5).
type Interpolator interface {
	Lookup(name string) (string, bool)
}

// Fragment is either a fixed string or a list of candidate strings one of
// which is chosen uniformly at random (spec §4.4 `_pickAndInterpolate`).
type Fragment struct {
	Text  string
	Group []string
}

// One builds a single-string fragment.
func One(s string) Fragment { return Fragment{Text: s} }

// OneOf builds a fragment that picks uniformly among candidates.
func OneOf(candidates []string) Fragment { return Fragment{Group: candidates} }

// Chooser picks an index in [0, n) — injected so tests can use a
// deterministic source (spec §9 "Randomness").
type Chooser func(n int) int

type sayEntry struct {
	text  string
	quick bool
}

// Manager accumulates the say/ask buffers for one turn.
type Manager struct {
	choose     Chooser
	sayBuf     []sayEntry
	askBuf     []string
	asked      float64
	spokenRate string
	closed     bool
	closeSet   bool
}

// New creates a Manager using choose to resolve Fragment groups.
func New(choose Chooser) *Manager {
	if choose == nil {
		choose = func(n int) int { return 0 }
	}
	return &Manager{choose: choose}
}

func (m *Manager) resolve(f Fragment, interp Interpolator) string {
	text := f.Text
	if len(f.Group) > 0 {
		text = f.Group[m.choose(len(f.Group))%len(f.Group)]
	}
	return interpolate(text, interp)
}

var varRef = regexp.MustCompile(`\{\{([A-Za-z0-9_.]+)\}\}`)

func interpolate(text string, interp Interpolator) string {
	if interp == nil {
		return text
	}
	return varRef.ReplaceAllStringFunc(text, func(m string) string {
		name := varRef.FindStringSubmatch(m)[1]
		if v, ok := interp.Lookup(name); ok {
			return v
		}
		return m
	})
}

// Say appends a statement fragment. Sequential statements join with a
// 500ms pause unless quick is true (spec §4.4).
func (m *Manager) Say(f Fragment, quick bool, interp Interpolator) {
	m.sayBuf = append(m.sayBuf, sayEntry{text: m.resolve(f, interp), quick: quick})
}

// Prompt appends a question fragment that counts for 0.34 of a full
// question (spec §4.4: "three prompts count as one question").
func (m *Manager) Prompt(f Fragment, interp Interpolator) {
	m.askBuf = append(m.askBuf, m.resolve(f, interp))
	m.asked += 0.34
}

// Ask appends a question fragment that counts as a full question.
func (m *Manager) Ask(f Fragment, interp Interpolator) {
	m.askBuf = append(m.askBuf, m.resolve(f, interp))
	m.asked += 1
}

// Asked returns the accumulated question counter (spec invariant §3.2).
func (m *Manager) Asked() float64 { return m.asked }

// SetSpokenRate sets the SSML prosody rate wrapping the final composition.
func (m *Manager) SetSpokenRate(rate string) { m.spokenRate = rate }

// RequestClose marks that the author wants the session to end this turn.
func (m *Manager) RequestClose() { m.closed = true; m.closeSet = true }

func (m *Manager) composeSay() string {
	var b strings.Builder
	for i, e := range m.sayBuf {
		if i > 0 {
			if e.quick {
				b.WriteString(" ")
			} else {
				b.WriteString(" " + pause + " ")
			}
		}
		b.WriteString(e.text)
	}
	return b.String()
}

func (m *Manager) composeAsk() string {
	if len(m.askBuf) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(pause + " ")
	switch len(m.askBuf) {
	case 1:
		b.WriteString(m.askBuf[0])
	default:
		b.WriteString(strings.Join(m.askBuf[:len(m.askBuf)-1], ", "))
		b.WriteString(" or ")
		b.WriteString(m.askBuf[len(m.askBuf)-1])
	}
	return b.String()
}

// Flush composes the accumulated buffers into the final spoken reply and
// whether the session should remain open (spec §4.4 composition rules).
// It does not reset the manager; callers use one Manager per turn.
func (m *Manager) Flush() (speech string, keepOpen bool) {
	say := m.composeSay()
	ask := m.composeAsk()

	var parts []string
	if say != "" {
		parts = append(parts, say)
	}
	if ask != "" {
		parts = append(parts, ask)
	}
	speech = strings.Join(parts, " ")
	speech = strings.ReplaceAll(speech, " & ", " and ")

	if m.spokenRate != "" && speech != "" {
		speech = `<prosody rate="` + m.spokenRate + `">` + speech + `</prosody>`
	}

	keepOpen = true
	if m.closeSet {
		keepOpen = !m.closed
	}
	return speech, keepOpen
}
