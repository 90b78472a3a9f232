package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingiris/violet-convo/internal/core/goal"
	"github.com/tingiris/violet-convo/internal/core/response"
	"github.com/tingiris/violet-convo/internal/platform"
)

// fakeSession is an in-memory platform.Session for tests.
type fakeSession struct{ data map[string]string }

func newFakeSession() *fakeSession { return &fakeSession{data: map[string]string{}} }

func (s *fakeSession) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeSession) Set(ctx context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

func (s *fakeSession) GetAttributes(ctx context.Context) (map[string]string, error) {
	return s.data, nil
}

// fakeRequest is an in-memory platform.Request for tests.
type fakeRequest struct {
	userID string
	intent string
	slots  map[string]string
	sess   *fakeSession

	speech     string
	endSession bool
	ended      bool
}

func newFakeRequest(intent string, slots map[string]string, sess *fakeSession) *fakeRequest {
	return &fakeRequest{intent: intent, slots: slots, sess: sess, userID: "u1"}
}

func (r *fakeRequest) UserID() string           { return r.userID }
func (r *fakeRequest) IntentName() string       { return r.intent }
func (r *fakeRequest) Slots() map[string]string { return r.slots }
func (r *fakeRequest) Slot(name string) (string, bool) {
	v, ok := r.slots[name]
	return v, ok
}
func (r *fakeRequest) Session() platform.Session { return r.sess }
func (r *fakeRequest) Say(ctx context.Context, composedSSML string) error {
	r.speech = composedSSML
	return nil
}
func (r *fakeRequest) ShouldEndSession(ctx context.Context, end bool) error {
	r.endSession = end
	r.ended = true
	return nil
}

// fakePlatform records every registration so tests can dispatch directly.
type fakePlatform struct {
	intents map[string]platform.Handler
	launch  platform.Handler
	onError func(ctx context.Context, req platform.Request, cause error)
}

func newFakePlatform() *fakePlatform { return &fakePlatform{intents: map[string]platform.Handler{}} }

func (p *fakePlatform) RegIntent(name string, spec platform.IntentSpec, handler platform.Handler) error {
	p.intents[name] = handler
	return nil
}
func (p *fakePlatform) RegCustomSlot(typeName string, values []string) error { return nil }
func (p *fakePlatform) OnLaunch(handler platform.Handler) error             { p.launch = handler; return nil }
func (p *fakePlatform) OnError(handler func(ctx context.Context, req platform.Request, cause error)) error {
	p.onError = handler
	return nil
}

func newTestEngine() (*Engine, *fakePlatform) {
	registry := platform.NewRegistry()
	fp := newFakePlatform()
	registry.Register(fp)
	return New(registry, nil), fp
}

// S1. Single-turn intent, no goals.
func TestScenarioS1SingleTurnIntent(t *testing.T) {
	eng, fp := newTestEngine()
	eng.RespondTo(IntentDef{
		Name:      "hello",
		Expecting: []string{"Hello"},
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			r.Say("Hi", false)
			return true, nil
		},
	})
	require.NoError(t, eng.RegisterIntents())

	sess := newFakeSession()
	req := newFakeRequest("hello", nil, sess)
	require.NoError(t, fp.intents["hello"](context.Background(), req))

	assert.Equal(t, "Hi", req.speech)
	assert.False(t, req.endSession)
}

// S2. Prompt goal fills a slot across two turns.
func TestScenarioS2PromptFillsSlot(t *testing.T) {
	eng, fp := newTestEngine()
	require.NoError(t, eng.DefineGoal(GoalDef{
		Key:    "airline",
		Prompt: []string{"What airline?"},
		RespondTo: []IntentDef{{
			Name:      "setAirline",
			Expecting: []string{"[[airline]]"},
			Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
				v, _ := r.Get("[[airline]]")
				return true, r.Set("{{airline}}", v)
			},
		}},
	}))
	require.NoError(t, eng.RegisterIntents())

	sess := newFakeSession()
	sess.data[goal.SessionKey] = "airline"

	// First turn: no matching intent fired directly; run the launch path's
	// goal loop by invoking the prompt goal's handler through a zero-intent
	// dispatch equivalent -- exercise processIntent via the registered
	// setAirline handler would require the slot; instead confirm the queued
	// prompt surfaces through handleLaunch's shared loop.
	req := newFakeRequest("__launch__", nil, sess)
	require.NoError(t, eng.handleLaunch(context.Background(), req))
	assert.Contains(t, req.speech, "What airline?")

	// Second turn: slot arrives, resolver pops the frame.
	req2 := newFakeRequest("setAirline", map[string]string{"airline": "Delta"}, sess)
	require.NoError(t, fp.intents["setAirline"](context.Background(), req2))
	v, ok, _ := sess.Get(context.Background(), "airline")
	assert.True(t, ok)
	assert.Equal(t, "Delta", v)

	state, _, _ := sess.Get(context.Background(), goal.SessionKey)
	assert.Empty(t, state, "airline goal frame must pop once its scoped intent resolves")
}

// S3. Dependency chaining via GoalFilled.
func TestScenarioS3DependencyChaining(t *testing.T) {
	eng, fp := newTestEngine()
	require.NoError(t, eng.DefineGoal(GoalDef{
		Key: "checkInDetails",
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			if !r.GoalFilled("bloodSugar", "{{bloodSugar}}") {
				return false, nil
			}
			return true, nil
		},
	}))
	require.NoError(t, eng.DefineGoal(GoalDef{
		Key:    "bloodSugar",
		Prompt: []string{"What is your blood sugar?"},
		RespondTo: []IntentDef{{
			Name:      "setBloodSugar",
			Expecting: []string{"[[bloodSugar]]"},
			Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
				v, _ := r.Get("[[bloodSugar]]")
				return true, r.Set("{{bloodSugar}}", v)
			},
		}},
	}))
	eng.RespondTo(IntentDef{
		Name:      "startCheckIn",
		Expecting: []string{"check in"},
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			r.AddGoal("checkInDetails")
			return true, nil
		},
	})
	require.NoError(t, eng.RegisterIntents())

	sess := newFakeSession()
	req := newFakeRequest("startCheckIn", nil, sess)
	require.NoError(t, fp.intents["startCheckIn"](context.Background(), req))

	state, _, _ := sess.Get(context.Background(), goal.SessionKey)
	assert.Contains(t, state, "checkInDetails")
	assert.Contains(t, state, "bloodSugar")
	assert.Contains(t, req.speech, "blood sugar")

	req2 := newFakeRequest("setBloodSugar", map[string]string{"bloodSugar": "110"}, sess)
	require.NoError(t, fp.intents["setBloodSugar"](context.Background(), req2))

	v, _, _ := sess.Get(context.Background(), "bloodSugar")
	assert.Equal(t, "110", v)

	state2, _, _ := sess.Get(context.Background(), goal.SessionKey)
	assert.Empty(t, state2, "bloodSugar's resolver pops its own frame, then checkInDetails resolves and pops too")
}

// S6. Launch picks a configured phrase verbatim.
func TestScenarioS6Launch(t *testing.T) {
	eng, fp := newTestEngine()
	eng.SetLaunchPhrases([]string{"Welcome!"})
	require.NoError(t, eng.RegisterIntents())

	sess := newFakeSession()
	req := newFakeRequest("__launch__", nil, sess)
	require.NoError(t, fp.launch(context.Background(), req))
	assert.Equal(t, "Welcome!", req.speech)
}

// Resolver-success-removes-exactly-one-frame: the only frame resolves and the
// persisted goal state ends up empty.
func TestGoalLoopInvariants(t *testing.T) {
	eng, fp := newTestEngine()
	require.NoError(t, eng.DefineGoal(GoalDef{
		Key: "autoResolve",
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			return true, nil
		},
	}))
	eng.RespondTo(IntentDef{
		Name:      "push",
		Expecting: []string{"go"},
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			r.AddGoal("autoResolve")
			return true, nil
		},
	})
	require.NoError(t, eng.RegisterIntents())

	sess := newFakeSession()
	req := newFakeRequest("push", nil, sess)
	require.NoError(t, fp.intents["push"](context.Background(), req))

	state, _, _ := sess.Get(context.Background(), goal.SessionKey)
	assert.Empty(t, state)
}

func TestRegisterIntentsFreezesTables(t *testing.T) {
	eng, _ := newTestEngine()
	require.NoError(t, eng.RegisterIntents())
	assert.Panics(t, func() { eng.AddTopLevelGoal("x") })
}

func TestDefineGoalRejectsBothResolveAndPrompt(t *testing.T) {
	eng, _ := newTestEngine()
	err := eng.DefineGoal(GoalDef{
		Key:     "bad",
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) { return true, nil },
		Prompt:  []string{"x"},
	})
	assert.Error(t, err)
}
