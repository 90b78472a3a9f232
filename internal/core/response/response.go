// Package response implements the Response facade (spec §4.5): the
// per-turn object passed to author callbacks for session access, goal
// management, say/prompt/ask output, and persistent-record access.
package response

import (
	"context"
	"fmt"
	"strings"

	"github.com/tingiris/violet-convo/internal/core/goal"
	"github.com/tingiris/violet-convo/internal/core/output"
	"github.com/tingiris/violet-convo/internal/platform"
)

// Record is a persistent-record instance: an author-declared tabular object
// backed by an opaque store (spec §3 PersistentRecord). KeyField/KeyValue
// identify the row within Type for a subsequent StoreRecord/StoreRecordAsync
// call; they are set by LoadRecord and otherwise left zero for a
// not-yet-persisted record.
type Record struct {
	Type     string
	KeyField string
	KeyValue string
	Fields   map[string]string
}

// Store is the persistent-record backend contract (spec §6): load fetches
// one record by a key field/value pair plus an opaque where-clause, store
// upserts it.
type Store interface {
	Load(ctx context.Context, recordType, keyField, keyValue, where string) (*Record, error)
	Store(ctx context.Context, rec *Record) error
}

// AsyncDispatcher hands a Store write off to run outside the turn's
// critical path (spec §4.10 task bus); optional.
type AsyncDispatcher interface {
	DispatchStore(ctx context.Context, rec *Record) error
}

// Response is the per-turn facade handed to author resolver/prompt
// callbacks.
type Response struct {
	ctx     context.Context
	req     platform.Request
	session platform.Session
	stack   *goal.Stack
	out     *output.Manager
	store   Store
	async   AsyncDispatcher

	requestSlots map[string]string
	records      map[string]*Record

	// GoalStateChanged resets the goal loop's cursor to 0 when true, so
	// newly pushed goals are considered next (spec §4.5, §4.6).
	GoalStateChanged bool
}

// New constructs a Response for one turn. requestSlots have already been
// copied into the session by the caller per the Session invariant (spec §3
// invariant 1 ordering: "Slot values from the just-arrived request are
// copied in before dispatch").
func New(ctx context.Context, req platform.Request, stack *goal.Stack, out *output.Manager, store Store, async AsyncDispatcher) *Response {
	return &Response{
		ctx:          ctx,
		req:          req,
		session:      req.Session(),
		stack:        stack,
		out:          out,
		store:        store,
		async:        async,
		requestSlots: req.Slots(),
		records:      make(map[string]*Record),
	}
}

// Stack exposes the underlying goal stack to the engine's goal loop.
func (r *Response) Stack() *goal.Stack { return r.stack }

// Output exposes the underlying OutputManager to the engine's goal loop.
func (r *Response) Output() *output.Manager { return r.out }

// PersistStack writes the (possibly mutated) goal stack back to the
// session's reserved convoGoalState slot (spec §6).
func (r *Response) PersistStack(ctx context.Context) error {
	return r.session.Set(ctx, goal.SessionKey, r.stack.Encode())
}

// --- say / prompt / ask -----------------------------------------------

// Say queues a statement. quick suppresses the 500ms pause before it when
// joined after a previous Say call (spec §4.4).
func (r *Response) Say(text string, quick bool) { r.out.Say(output.One(text), quick, r) }

// SayOneOf queues a statement chosen uniformly from candidates.
func (r *Response) SayOneOf(candidates []string, quick bool) {
	r.out.Say(output.OneOf(candidates), quick, r)
}

// Prompt queues a question fragment worth 0.34 of a full question.
func (r *Response) Prompt(text string) { r.out.Prompt(output.One(text), r) }

// PromptOneOf queues a randomly-chosen prompt fragment.
func (r *Response) PromptOneOf(candidates []string) { r.out.Prompt(output.OneOf(candidates), r) }

// Ask queues a question fragment worth a full question.
func (r *Response) Ask(text string) { r.out.Ask(output.One(text), r) }

// AskOneOf queues a randomly-chosen question fragment.
func (r *Response) AskOneOf(candidates []string) { r.out.Ask(output.OneOf(candidates), r) }

// SetSpokenRate wraps the final composition in a prosody tag.
func (r *Response) SetSpokenRate(rate string) { r.out.SetSpokenRate(rate) }

// RequestClose marks that the author wants the session to end this turn.
func (r *Response) RequestClose() { r.out.RequestClose() }

// --- get / set -----------------------------------------------------------

// Lookup implements output.Interpolator for {{var}} substitution: dotted
// names resolve against a loaded persistent record, everything else
// against the session (spec §4.4 "substitute every {{var}} using the
// session (or persistent-record) store").
func (r *Response) Lookup(name string) (string, bool) {
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		rec, ok := r.records[name[:dot]]
		if !ok {
			return "", false
		}
		v, ok := rec.Fields[name[dot+1:]]
		return v, ok
	}
	v, ok, err := r.session.Get(r.ctx, name)
	if err != nil {
		return "", false
	}
	return v, ok
}

// Get resolves a reference in one of the three namespaces from spec §4.5:
// {{name}} session variable, [[name]] current-request slot (a read-only
// alias into the session), <<record.field>> persistent-record field.
func (r *Response) Get(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "{{") && strings.HasSuffix(ref, "}}"):
		name := ref[2 : len(ref)-2]
		v, _, err := r.session.Get(r.ctx, name)
		return v, err
	case strings.HasPrefix(ref, "[[") && strings.HasSuffix(ref, "]]"):
		name := ref[2 : len(ref)-2]
		if v, ok := r.requestSlots[name]; ok {
			return v, nil
		}
		v, _, err := r.session.Get(r.ctx, name)
		return v, err
	case strings.HasPrefix(ref, "<<") && strings.HasSuffix(ref, ">>"):
		name := ref[2 : len(ref)-2]
		dot := strings.IndexByte(name, '.')
		if dot < 0 {
			return "", fmt.Errorf("malformed record reference %q", ref)
		}
		rec, ok := r.records[name[:dot]]
		if !ok {
			return "", fmt.Errorf("record %q not loaded", name[:dot])
		}
		return rec.Fields[name[dot+1:]], nil
	default:
		return "", fmt.Errorf("unrecognized reference %q", ref)
	}
}

// Set writes a reference. Only the {{name}} and <<record.field>> namespaces
// are writable; [[name]] is a read-only alias into the session.
func (r *Response) Set(ref string, value string) error {
	switch {
	case strings.HasPrefix(ref, "{{") && strings.HasSuffix(ref, "}}"):
		name := ref[2 : len(ref)-2]
		return r.session.Set(r.ctx, name, value)
	case strings.HasPrefix(ref, "<<") && strings.HasSuffix(ref, ">>"):
		name := ref[2 : len(ref)-2]
		dot := strings.IndexByte(name, '.')
		if dot < 0 {
			return fmt.Errorf("malformed record reference %q", ref)
		}
		rec, ok := r.records[name[:dot]]
		if !ok {
			return fmt.Errorf("record %q not loaded", name[:dot])
		}
		rec.Fields[name[dot+1:]] = value
		return nil
	case strings.HasPrefix(ref, "[[") && strings.HasSuffix(ref, "]]"):
		return fmt.Errorf("%q is read-only", ref)
	default:
		return fmt.Errorf("unrecognized reference %q", ref)
	}
}

// --- persistent store ------------------------------------------------

// LoadRecord fetches a record from the persistent store and keeps it
// addressable by alias for subsequent Get/Set/<<alias.field>> calls.
func (r *Response) LoadRecord(alias, recordType, keyField, keyValue, where string) (*Record, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no persistent store configured")
	}
	rec, err := r.store.Load(r.ctx, recordType, keyField, keyValue, where)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{Type: recordType, Fields: map[string]string{}}
	}
	rec.KeyField, rec.KeyValue = keyField, keyValue
	r.records[alias] = rec
	return rec, nil
}

// StoreRecord upserts a previously loaded/mutated record synchronously.
func (r *Response) StoreRecord(alias string) error {
	rec, ok := r.records[alias]
	if !ok {
		return fmt.Errorf("record %q not loaded", alias)
	}
	if r.store == nil {
		return fmt.Errorf("no persistent store configured")
	}
	return r.store.Store(r.ctx, rec)
}

// StoreRecordAsync dispatches the upsert through the task bus instead of
// blocking the turn (spec §4.10).
func (r *Response) StoreRecordAsync(alias string) error {
	rec, ok := r.records[alias]
	if !ok {
		return fmt.Errorf("record %q not loaded", alias)
	}
	if r.async == nil {
		return r.StoreRecord(alias)
	}
	return r.async.DispatchStore(r.ctx, rec)
}

// --- goal management ----------------------------------------------------

// AddGoal pushes a goal frame and flags the loop to restart from the top
// (spec §4.5 addGoal).
func (r *Response) AddGoal(key string) {
	r.stack.Append(key)
	r.GoalStateChanged = true
}

// ClearGoal removes the innermost frame for key.
func (r *Response) ClearGoal(key string) {
	r.stack.Remove(key)
	r.GoalStateChanged = true
}

// HasGoal reports whether key is anywhere on the stack.
func (r *Response) HasGoal(key string) bool { return r.stack.Contains(key) }

// GoalFilled implements the dependency-chaining primitive from spec §4.5:
// if slotRef resolves to an empty value, it queues childKey and returns
// false (the caller's dependency is not met yet); otherwise it returns true.
func (r *Response) GoalFilled(childKey string, slotRef string) bool {
	v, err := r.Get(slotRef)
	if err == nil && v != "" {
		return true
	}
	if !r.stack.Contains(childKey) {
		r.AddGoal(childKey)
	}
	return false
}
