// Package engine implements the ConversationEngine and InputManager
// components (spec §4.6, §4.7): the registration surface authors call to
// describe goals/intents, the lazy compile step that turns them into
// platform-ready intent tables, and the per-turn dispatch/goal-resolution
// loop.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tingiris/violet-convo/internal/core/response"
	"github.com/tingiris/violet-convo/internal/core/script"
	"github.com/tingiris/violet-convo/internal/platform"
	"go.uber.org/zap"
)

// Logger is the minimal logging seam the engine needs; pkg/logger.Base()
// satisfies it directly.
type Logger interface {
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

type compiledIntent struct {
	name string
	defs []*IntentDef // len==1 for a local intent, >1 for a global intent
}

// Engine is the registration surface and compiled intent table (spec §4.7).
// It is a process-wide singleton per spec §5 "Shared-resource policy": one
// Engine serves every turn; Session/Response are created fresh per turn.
type Engine struct {
	mu sync.Mutex

	slotTypes map[string]script.SlotType
	equivSets []script.PhraseEquivalentSet

	goals        map[string]*GoalDef
	goalOrder    []string
	topLevel     []string
	launchPhrase []string
	closeReqs    map[string]bool
	spokenRate   string

	// registration-time utterance bookkeeping, cleared after compile.
	intentDefs []*IntentDef
	usedNames  map[string]bool
	compiled   map[string]*compiledIntent // platform intent name -> compiled
	frozen     bool
	store      response.Store
	async      response.AsyncDispatcher
	registry   *platform.Registry
	log        Logger
}

// New creates an empty engine. registry is the fan-out target used by
// RegisterIntents; log receives DispatchWarning-class messages (spec §7).
func New(registry *platform.Registry, log Logger) *Engine {
	return &Engine{
		slotTypes: make(map[string]script.SlotType),
		goals:     make(map[string]*GoalDef),
		closeReqs: make(map[string]bool),
		usedNames: make(map[string]bool),
		registry:  registry,
		log:       log,
	}
}

func (e *Engine) checkMutable(op string) {
	if e.frozen {
		panic(fmt.Sprintf("engine: %s called after RegisterIntents; registration tables are frozen", op))
	}
}

// AddInputTypes accumulates slot types; idempotent per key, last write wins
// (spec §4.7).
func (e *Engine) AddInputTypes(types map[string]script.SlotType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("AddInputTypes")
	for name, t := range types {
		t.Name = name
		e.slotTypes[name] = t
	}
}

// AddPhraseEquivalents appends lowercased equivalence sets (spec §4.7).
func (e *Engine) AddPhraseEquivalents(sets []script.PhraseEquivalentSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("AddPhraseEquivalents")
	for _, set := range sets {
		lowered := make(script.PhraseEquivalentSet, len(set))
		for i, phrase := range set {
			lowered[i] = strings.ToLower(phrase)
		}
		e.equivSets = append(e.equivSets, lowered)
	}
}

// RespondTo indexes def under every utterance in def.Expecting (spec §4.7).
// An utterance shared across multiple defs becomes a global intent at
// compile time.
func (e *Engine) RespondTo(def IntentDef) *IntentDef {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("RespondTo")
	stored := def
	e.intentDefs = append(e.intentDefs, &stored)
	return &stored
}

// DefineGoal registers a goal definition; nested RespondTo entries are
// desugared into top-level IntentDefs scoped to this goal's key (spec
// §3, §4.7).
func (e *Engine) DefineGoal(def GoalDef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("DefineGoal")

	if err := validateGoalDef(def); err != nil {
		return err
	}
	if _, dup := e.goals[def.Key]; dup {
		return fmt.Errorf("registration error: duplicate goal key %q", def.Key)
	}

	stored := def
	nested := stored.RespondTo
	stored.RespondTo = nil
	e.goals[def.Key] = &stored
	e.goalOrder = append(e.goalOrder, def.Key)

	for _, intent := range nested {
		intent.Goal = def.Key
		copied := intent
		e.intentDefs = append(e.intentDefs, &copied)
	}
	return nil
}

func validateGoalDef(d GoalDef) error {
	if d.IsResolver() && d.IsQuery() {
		return fmt.Errorf("registration error: goal %q declares both resolve and prompt/ask", d.Key)
	}
	if !d.IsResolver() && !d.IsQuery() {
		return fmt.Errorf("registration error: goal %q declares neither resolve nor prompt/ask", d.Key)
	}
	return nil
}

// AddTopLevelGoal records a goal the engine may re-push on launch (spec §9
// open question 3: unifies setTopLevelGoal/addTopLevelGoal as append-only).
func (e *Engine) AddTopLevelGoal(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("AddTopLevelGoal")
	e.topLevel = append(e.topLevel, key)
}

// SetLaunchPhrases sets the candidate phrases spoken on launch (spec §4.7).
func (e *Engine) SetLaunchPhrases(phrases []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("SetLaunchPhrases")
	e.launchPhrase = phrases
}

// SetCloseRequests sets the set of phrases/keys that mean "end the session".
func (e *Engine) SetCloseRequests(requests []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("SetCloseRequests")
	for _, r := range requests {
		e.closeReqs[r] = true
	}
}

// SetSpokenRate sets the SSML prosody rate for every composed reply; the
// dispatch and launch paths pass it to each turn's output manager.
func (e *Engine) SetSpokenRate(rate string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("SetSpokenRate")
	e.spokenRate = rate
}

// SetPersistentStore wires the backend for Response.LoadRecord/StoreRecord.
func (e *Engine) SetPersistentStore(store response.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("SetPersistentStore")
	e.store = store
}

// SetAsyncDispatcher wires the backend for Response.StoreRecordAsync.
func (e *Engine) SetAsyncDispatcher(async response.AsyncDispatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkMutable("SetAsyncDispatcher")
	e.async = async
}

// TopLevelGoals returns the registered top-level goal keys.
func (e *Engine) TopLevelGoals() []string { return append([]string(nil), e.topLevel...) }

// LaunchPhrases returns the registered launch phrases.
func (e *Engine) LaunchPhrases() []string { return append([]string(nil), e.launchPhrase...) }

// IsCloseRequest reports whether text is a registered close phrase.
func (e *Engine) IsCloseRequest(text string) bool { return e.closeReqs[text] }

// SpokenRate returns the configured SSML prosody rate, if any.
func (e *Engine) SpokenRate() string { return e.spokenRate }

// Goal returns a previously registered goal definition.
func (e *Engine) Goal(key string) (*GoalDef, bool) {
	g, ok := e.goals[key]
	return g, ok
}

// nameGenerator produces alphabetic, digit-free names (spec §3 IntentDef,
// §9 open question 1: avoid collisions by probing sequential candidates).
type nameGenerator struct {
	used map[string]bool
	next int
}

func (g *nameGenerator) generate() string {
	for {
		name := toAlpha(g.next)
		g.next++
		if !g.used[name] {
			g.used[name] = true
			return name
		}
	}
}

// toAlpha converts n (0-based) into a base-26 lowercase-letter sequence
// prefixed with "intent_": 0->"intent_a", 25->"intent_z", 26->"intent_aa", ...
func toAlpha(n int) string {
	if n < 0 {
		n = 0
	}
	var letters []byte
	n++ // make it 1-based so there's no leading "a" ambiguity like Excel columns
	for n > 0 {
		n--
		letters = append([]byte{byte('a' + n%26)}, letters...)
		n /= 26
	}
	return "intent_" + string(letters)
}

// RegisterIntents runs the compile step (spec §4.7): groups utterances into
// local vs global intents, generates missing names, registers custom-enum
// slot values, and fans the compiled intent table out to the platform
// registry. Must be called exactly once after all registrations.
func (e *Engine) RegisterIntents() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return fmt.Errorf("registration error: RegisterIntents called twice")
	}

	// Group utterances by how many defs share them.
	owners := make(map[string][]*IntentDef)
	for _, def := range e.intentDefs {
		for _, u := range def.Expecting {
			owners[u] = append(owners[u], def)
		}
	}

	gen := &nameGenerator{used: e.usedNames}
	for _, def := range e.intentDefs {
		if def.Name != "" {
			if e.usedNames[def.Name] {
				return fmt.Errorf("registration error: duplicate intent name %q", def.Name)
			}
			e.usedNames[def.Name] = true
		}
	}

	e.compiled = make(map[string]*compiledIntent)

	// Partition each def's utterances into locally-owned vs globally-shared.
	localUtterances := make(map[*IntentDef][]string)
	globalUtterances := make(map[string][]*IntentDef)
	seenGlobal := make(map[string]bool)
	for u, defs := range owners {
		if len(defs) > 1 {
			if !seenGlobal[u] {
				seenGlobal[u] = true
				globalUtterances[u] = defs
			}
			continue
		}
		localUtterances[defs[0]] = append(localUtterances[defs[0]], u)
	}

	for _, def := range e.intentDefs {
		utterances := localUtterances[def]
		if len(utterances) == 0 {
			continue
		}
		name := def.Name
		if name == "" {
			name = gen.generate()
		}
		result := script.Compile(utterances, e.slotTypes, e.equivSets)
		e.logWarnings(result.Warnings)
		e.compiled[name] = &compiledIntent{name: name, defs: []*IntentDef{def}}
		if err := e.registry.RegIntent(name, platform.IntentSpec{Utterances: result.Utterances, Slots: result.Slots}, e.makeHandler(name)); err != nil {
			return err
		}
	}

	// Stable order over the global utterances so name generation is
	// deterministic across runs with the same registrations.
	globalKeys := make([]string, 0, len(globalUtterances))
	for u := range globalUtterances {
		globalKeys = append(globalKeys, u)
	}
	sort.Strings(globalKeys)

	for _, u := range globalKeys {
		defs := globalUtterances[u]
		name := gen.generate()
		result := script.Compile([]string{u}, e.slotTypes, e.equivSets)
		e.logWarnings(result.Warnings)
		e.compiled[name] = &compiledIntent{name: name, defs: defs}
		if err := e.registry.RegIntent(name, platform.IntentSpec{Utterances: result.Utterances, Slots: result.Slots}, e.makeHandler(name)); err != nil {
			return err
		}
	}

	for name, t := range e.slotTypes {
		if t.Kind == script.KindCustomEnum {
			if len(t.Values) == 0 {
				return fmt.Errorf("registration error: custom slot %q has no values", name)
			}
			if err := e.registry.RegCustomSlot(name, t.Values); err != nil {
				return err
			}
		}
	}

	if err := e.registry.OnLaunch(e.handleLaunch); err != nil {
		return err
	}
	if err := e.registry.OnError(e.handleError); err != nil {
		return err
	}

	e.frozen = true
	e.intentDefs = nil
	return nil
}

func (e *Engine) logWarnings(warnings []string) {
	if e.log == nil {
		return
	}
	for _, w := range warnings {
		e.log.Warn("script compile warning", zap.String("warning", w))
	}
}
