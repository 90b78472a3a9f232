package engine

import (
	"context"

	"github.com/tingiris/violet-convo/internal/core/goal"
	"github.com/tingiris/violet-convo/internal/core/response"
)

// Resolver is the single blocking signature every author callback —
// IntentDef.Resolve and GoalDef.Resolve alike — implements. Returning
// (true, nil) means "resolved / succeeded"; for a goal resolver that pops
// the frame (spec §4.6 "result in {true, undefined}"). Returning
// (false, nil) for a goal resolver leaves the frame pending for a later
// turn (spec S3 dependency chaining). Go has no promise/generator split, so
// this single signature is the collapse spec §5/§9 call for: an author
// that wants asynchronous work just does it inside the function body.
type Resolver func(ctx context.Context, r *response.Response) (bool, error)

// IntentDef is an author-registered intent (spec §3 IntentDef).
type IntentDef struct {
	// Name is the platform intent name. Auto-generated if empty.
	Name string
	// Goal scopes the intent: when several defs share an intent, the one
	// whose Goal is on the stack is chosen; a def that is the only one for
	// its intent runs regardless of the stack. On success the topmost frame
	// for Goal is removed. Empty means unscoped.
	Goal string
	// Expecting is the list of author utterance templates this intent
	// matches against.
	Expecting []string
	// Resolve is invoked once this intent wins dispatch for a turn.
	Resolve Resolver
}

// GoalDef is an author-registered goal (spec §3 GoalDef). Exactly one of
// (Resolve) or (Prompt/Ask) must be set.
type GoalDef struct {
	Key     string
	Resolve Resolver
	Prompt  []string
	Ask     []string
	// RespondTo holds nested intent defs desugared with Goal = Key at
	// registration time (spec §3, §4.7).
	RespondTo []IntentDef
}

// IsResolver reports whether d is a resolver goal (spec §3a).
func (d GoalDef) IsResolver() bool { return d.Resolve != nil }

// IsQuery reports whether d is a query goal (spec §3b).
func (d GoalDef) IsQuery() bool { return len(d.Prompt) > 0 || len(d.Ask) > 0 }

// goalFrame is a thin alias of goal.Frame, kept for readability at call
// sites.
type goalFrame = goal.Frame
