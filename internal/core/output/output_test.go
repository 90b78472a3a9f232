package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func zeroChooser(n int) int { return 0 }

func TestSayComposesWithPause(t *testing.T) {
	m := New(zeroChooser)
	m.Say(One("Hi"), false, nil)
	m.Say(One("there"), false, nil)
	speech, keepOpen := m.Flush()
	assert.Equal(t, `Hi <break time="500ms"/> there`, speech)
	assert.True(t, keepOpen)
}

func TestQuickSayOmitsPause(t *testing.T) {
	m := New(zeroChooser)
	m.Say(One("Hi"), false, nil)
	m.Say(One("there"), true, nil)
	speech, _ := m.Flush()
	assert.Equal(t, "Hi there", speech)
}

func TestPromptAccumulatesPartialQuestions(t *testing.T) {
	m := New(zeroChooser)
	m.Prompt(One("p1"), nil)
	assert.InDelta(t, 0.34, m.Asked(), 0.001)
	m.Prompt(One("p2"), nil)
	m.Prompt(One("p3"), nil)
	assert.GreaterOrEqual(t, m.Asked(), 1.0)

	speech, _ := m.Flush()
	assert.Equal(t, `<break time="500ms"/> p1, p2 or p3`, speech)
}

func TestAskCountsAsFullQuestion(t *testing.T) {
	m := New(zeroChooser)
	m.Ask(One("Which airline?"), nil)
	assert.Equal(t, 1.0, m.Asked())
}

func TestRequestCloseEndsSession(t *testing.T) {
	m := New(zeroChooser)
	m.RequestClose()
	_, keepOpen := m.Flush()
	assert.False(t, keepOpen)
}

type mapInterpolator map[string]string

func (m mapInterpolator) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func TestInterpolation(t *testing.T) {
	m := New(zeroChooser)
	m.Say(One("Hello {{name}}"), false, mapInterpolator{"name": "Sam"})
	speech, _ := m.Flush()
	assert.Equal(t, "Hello Sam", speech)
}

func TestOneOfUsesChooser(t *testing.T) {
	m := New(func(n int) int { return 1 })
	m.Say(OneOf([]string{"a", "b", "c"}), false, nil)
	speech, _ := m.Flush()
	assert.Equal(t, "b", speech)
}

func TestSpokenRateWrapsOutput(t *testing.T) {
	m := New(zeroChooser)
	m.SetSpokenRate("slow")
	m.Say(One("Hi"), false, nil)
	speech, _ := m.Flush()
	assert.Equal(t, `<prosody rate="slow">Hi</prosody>`, speech)
}
