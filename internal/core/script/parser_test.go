package script

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripPunctuationAndSpellNumbers(t *testing.T) {
	assert.Equal(t, "book 2 seats", stripPunctuation("book, 2 seats?"))
	assert.Equal(t, "book two seats", spellNumbers("book 2 seats"))
	assert.Equal(t, "twenty one", spellNumber(21))
	assert.Equal(t, "one hundred five", spellNumber(105))
}

func TestRewriteSlotsKnownAndUnknown(t *testing.T) {
	types := map[string]SlotType{
		"airline": {Kind: KindFreeText, Samples: []string{"Delta", "United"}},
		"seat":    {Kind: KindCustomEnum, Values: []string{"aisle", "window"}},
	}
	out, warnings := rewriteSlots("fly [[airline]] in [[seat]] seat [[missing]]", types)
	assert.Contains(t, out, "{Delta|United|airline}")
	assert.Contains(t, out, "{-|seat}")
	assert.Contains(t, out, "{-|missing}")
	require.Len(t, warnings, 1)
}

func TestExtractSlotsSoundness(t *testing.T) {
	types := map[string]SlotType{"airline": {Kind: KindFreeText, PlatformCode: "free_text"}}
	result := Compile([]string{"I want to fly [[airline]]"}, types, nil)
	for name := range result.Slots {
		found := false
		for _, u := range result.Utterances {
			if containsSlotRef(u, name) {
				found = true
				break
			}
		}
		assert.True(t, found, "slot %q must trace back to an input utterance", name)
	}
}

func containsSlotRef(u, name string) bool {
	for _, m := range slotExtract.FindAllStringSubmatch(u, -1) {
		if m[2] == name {
			return true
		}
	}
	return false
}

func TestPhraseEquivalentCommutativity(t *testing.T) {
	utterances := []string{"I want A and C"}
	ab := PhraseEquivalentSet{"A", "B"}
	cd := PhraseEquivalentSet{"C", "D"}

	first := expandPhraseEquivalents(utterances, []PhraseEquivalentSet{ab, cd})
	second := expandPhraseEquivalents(utterances, []PhraseEquivalentSet{cd, ab})

	assert.ElementsMatch(t, sortedCopy(first), sortedCopy(second))
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
