package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/tingiris/violet-convo/internal/core/goal"
	"github.com/tingiris/violet-convo/internal/core/output"
	"github.com/tingiris/violet-convo/internal/core/response"
	"github.com/tingiris/violet-convo/internal/platform"
	"go.uber.org/zap"
)

// maxGoalLoopIterations bounds the goal loop independently of the
// termination argument in spec §8.3, as a defensive backstop against a
// registration bug that would otherwise hang a turn.
func maxGoalLoopIterations(stackLen int) int { return 2*stackLen + 1 }

// chooseUniform is the default Chooser (spec §9 "Randomness"): uniform
// selection via math/rand. Tests inject their own deterministic Chooser by
// constructing an output.Manager directly.
func chooseUniform(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.Intn(n)
}

// selectIntentDef implements spec §4.6 step 2-3: the single-def shortcut,
// then a top-down goal-stack walk with first-registered-wins fallback.
func selectIntentDef(defs []*IntentDef, stack *goal.Stack, log Logger, intentName string) *IntentDef {
	if len(defs) == 1 {
		return defs[0]
	}
	frames := stack.Frames()
	for _, frame := range frames {
		for _, def := range defs {
			if def.Goal == frame.Key {
				return def
			}
		}
	}
	if log != nil {
		log.Warn("no goal-scoped def matched; falling back to first registration",
			zap.String("intent", intentName))
	}
	return defs[0]
}

// makeHandler builds the platform.Handler for one compiled intent name
// (spec §4.6 entry point).
func (e *Engine) makeHandler(name string) platform.Handler {
	return func(ctx context.Context, req platform.Request) error {
		return e.processIntent(ctx, req, name)
	}
}

func (e *Engine) processIntent(ctx context.Context, req platform.Request, intentName string) error {
	session := req.Session()
	for k, v := range req.Slots() {
		if err := session.Set(ctx, k, v); err != nil {
			return fmt.Errorf("copying request slots into session: %w", err)
		}
	}

	stateRaw, _, err := session.Get(ctx, goal.SessionKey)
	if err != nil {
		return fmt.Errorf("loading goal state: %w", err)
	}
	stack := goal.FromSession(stateRaw)

	compiled := e.compiled[intentName]
	var def *IntentDef
	if compiled == nil {
		// No compiled entry for this name; nothing to resolve up front, the
		// goal loop still runs.
	} else {
		def = selectIntentDef(compiled.defs, stack, e.log, intentName)
	}

	out := output.New(chooseUniform)
	out.SetSpokenRate(e.spokenRate)
	resp := response.New(ctx, req, stack, out, e.store, e.async)

	if def != nil && def.Resolve != nil {
		resolved, err := def.Resolve(ctx, resp)
		if err != nil {
			e.handleError(ctx, req, err)
			return nil
		}
		if resolved && def.Goal != "" {
			stack.Remove(def.Goal)
			resp.GoalStateChanged = true
		}
	}

	if err := e.runGoalLoop(ctx, resp); err != nil {
		e.handleError(ctx, req, err)
		return nil
	}

	return e.flush(ctx, req, resp)
}

// runGoalLoop implements the core algorithm of spec §4.6.
func (e *Engine) runGoalLoop(ctx context.Context, r *response.Response) error {
	stack := r.Stack()
	out := r.Output()

	cursor := -1
	var lastSeen *goal.Frame
	iterations := 0
	limit := 0

	for out.Asked() < 1 {
		iterations++
		if l := maxGoalLoopIterations(stack.Len()); l > limit {
			limit = l
		}
		if iterations > limit {
			return fmt.Errorf("goal loop exceeded bound of %d iterations", limit)
		}

		if r.GoalStateChanged {
			r.GoalStateChanged = false
			cursor = -1
			lastSeen = nil
		}
		cursor++

		frame, ok := stack.Top(cursor)
		if !ok {
			break
		}
		if lastSeen != nil && frame == *lastSeen {
			break
		}

		def, ok := e.Goal(frame.Key)
		if !ok {
			if e.log != nil {
				e.log.Warn("unknown goal frame on stack", zap.String("key", frame.Key))
			}
			break
		}

		if def.IsResolver() {
			resolved, err := def.Resolve(ctx, r)
			if err != nil {
				return err
			}
			if resolved {
				stack.Remove(frame.Key)
				r.GoalStateChanged = true
			}
		} else if def.IsQuery() {
			if frame.Queried {
				// already asked; cursor advances past it next loop
			} else {
				for _, p := range def.Prompt {
					r.Prompt(p)
				}
				for _, a := range def.Ask {
					r.Ask(a)
				}
				frame.Queried = true
				stack.UpdateAt(cursor, frame)
			}
		}

		copied := frame
		lastSeen = &copied
	}

	return r.PersistStack(ctx)
}

func (e *Engine) flush(ctx context.Context, req platform.Request, r *response.Response) error {
	speech, keepOpen := r.Output().Flush()
	if err := req.Say(ctx, speech); err != nil {
		return err
	}
	return req.ShouldEndSession(ctx, !keepOpen)
}

// handleLaunch implements spec §4.7 "Launch handling": say a uniformly
// random launch phrase, push every configured top-level goal, then run the
// goal loop.
func (e *Engine) handleLaunch(ctx context.Context, req platform.Request) error {
	session := req.Session()
	stateRaw, _, err := session.Get(ctx, goal.SessionKey)
	if err != nil {
		return fmt.Errorf("loading goal state: %w", err)
	}
	stack := goal.FromSession(stateRaw)
	for _, key := range e.topLevel {
		if !stack.Contains(key) {
			stack.Append(key)
		}
	}

	out := output.New(chooseUniform)
	out.SetSpokenRate(e.spokenRate)
	resp := response.New(ctx, req, stack, out, e.store, e.async)

	if len(e.launchPhrase) > 0 {
		resp.SayOneOf(e.launchPhrase, false)
	}

	if err := e.runGoalLoop(ctx, resp); err != nil {
		e.handleError(ctx, req, err)
		return nil
	}
	return e.flush(ctx, req, resp)
}

// handleError implements the ResolverFailure branch of spec §7: compose a
// generic apology and flush so the turn never ends silent.
func (e *Engine) handleError(ctx context.Context, req platform.Request, cause error) {
	if e.log != nil {
		e.log.Error("resolver failure", zap.Error(cause))
	}
	_ = req.Say(ctx, "Sorry, something went wrong. Please try again.")
	_ = req.ShouldEndSession(ctx, false)
}
