package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	punctuationStripper = strings.NewReplacer(",", "", "?", "")
	digitRun            = regexp.MustCompile(`\d+`)
	slotRef             = regexp.MustCompile(`\[\[([A-Za-z0-9_]+)\]\]`)
	slotExtract         = regexp.MustCompile(`\{([^{}|]*)\|([A-Za-z0-9_]+)\}`)
)

var ones = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
var teens = []string{"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
var tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

// spellNumber converts a non-negative integer into spoken English words
// (spec §4.2 step 2: "trainers receive words").
func spellNumber(n int) string {
	switch {
	case n < 10:
		return ones[n]
	case n < 20:
		return teens[n-10]
	case n < 100:
		word := tens[n/10]
		if n%10 != 0 {
			word += " " + ones[n%10]
		}
		return word
	case n < 1000:
		word := ones[n/100] + " hundred"
		if n%100 != 0 {
			word += " " + spellNumber(n%100)
		}
		return word
	default:
		// Beyond three digits, fall back to digit-by-digit reading, which
		// is what most voice trainers expect for things like phone numbers.
		var words []string
		for _, d := range strconv.Itoa(n) {
			words = append(words, ones[d-'0'])
		}
		return strings.Join(words, " ")
	}
}

// stripPunctuation removes ',' and '?' (spec §4.2 step 1).
func stripPunctuation(s string) string {
	return punctuationStripper.Replace(s)
}

// spellNumbers replaces bare digit runs with their spoken-English
// equivalent (spec §4.2 step 2).
func spellNumbers(s string) string {
	return digitRun.ReplaceAllStringFunc(s, func(digits string) string {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return digits
		}
		return spellNumber(n)
	})
}

// rewriteSlots replaces [[name]] references with {sampleVals|name} (spec
// §4.2 step 3). Unknown slot names produce a warning and are treated as
// free-text with no samples.
func rewriteSlots(s string, types map[string]SlotType) (string, []string) {
	var warnings []string
	out := slotRef.ReplaceAllStringFunc(s, func(m string) string {
		name := slotRef.FindStringSubmatch(m)[1]
		t, ok := types[name]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown slot %q, defaulting to free-text", name))
			return fmt.Sprintf("{-|%s}", name)
		}
		switch t.Kind {
		case KindFreeText:
			if len(t.Samples) == 0 {
				return fmt.Sprintf("{-|%s}", name)
			}
			return fmt.Sprintf("{%s|%s}", strings.Join(t.Samples, "|"), name)
		default: // built-in and custom-enum both render as "-"
			return fmt.Sprintf("{-|%s}", name)
		}
	})
	return out, warnings
}

// expandPhraseEquivalents performs the one-pass phrase-equivalent expansion
// of spec §4.2 step 4: newly generated utterances are never themselves
// expanded.
func expandPhraseEquivalents(utterances []string, sets []PhraseEquivalentSet) []string {
	out := append([]string(nil), utterances...)
	for _, u := range utterances {
		for _, set := range sets {
			for _, phrase := range set {
				re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(phrase))
				if err != nil || phrase == "" {
					continue
				}
				loc := re.FindStringIndex(u)
				if loc == nil {
					continue
				}
				for _, alt := range set {
					if strings.EqualFold(alt, phrase) {
						continue
					}
					expanded := u[:loc[0]] + alt + u[loc[1]:]
					out = append(out, expanded)
				}
			}
		}
	}
	return out
}

// extractSlots scans utterances for `|name}` segments and resolves each
// name to its platform type code (spec §4.2 step 5).
func extractSlots(utterances []string, types map[string]SlotType) map[string]string {
	slots := make(map[string]string)
	for _, u := range utterances {
		for _, m := range slotExtract.FindAllStringSubmatch(u, -1) {
			name := m[2]
			if _, ok := slots[name]; ok {
				continue
			}
			if t, ok := types[name]; ok && t.PlatformCode != "" {
				slots[name] = t.PlatformCode
			} else {
				slots[name] = "free_text"
			}
		}
	}
	return slots
}

// Result is the output of Compile.
type Result struct {
	Utterances []string
	Slots      map[string]string
	Warnings   []string
}

// Compile runs the full left-to-right transform pipeline described in spec
// §4.2 over a list of author utterances.
func Compile(utterances []string, types map[string]SlotType, sets []PhraseEquivalentSet) Result {
	stage := make([]string, len(utterances))
	var warnings []string
	for i, u := range utterances {
		u = stripPunctuation(u)
		u = spellNumbers(u)
		rewritten, w := rewriteSlots(u, types)
		warnings = append(warnings, w...)
		stage[i] = rewritten
	}

	expanded := expandPhraseEquivalents(stage, sets)
	slots := extractSlots(expanded, types)

	return Result{Utterances: expanded, Slots: slots, Warnings: warnings}
}
