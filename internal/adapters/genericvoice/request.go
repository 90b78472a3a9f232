package genericvoice

import (
	"context"
	"fmt"

	"github.com/tingiris/violet-convo/internal/platform"
	"github.com/tingiris/violet-convo/internal/store/sessionkv"
)

// envelope is the JSON body every webhook call carries, wrapped in a signed
// JWT (spec §6 PlatformRequest fields getUserId/getSlots/getSlot).
type envelope struct {
	UserID string            `json:"user_id"`
	Intent string            `json:"intent"`
	Slots  map[string]string `json:"slots"`
	Launch bool              `json:"launch,omitempty"`
}

// request adapts one decoded envelope plus a reply recorder into
// platform.Request.
type request struct {
	env     envelope
	session *sessionkv.Session
	reply   *replyRecorder
}

func (r *request) UserID() string            { return r.env.UserID }
func (r *request) IntentName() string        { return r.env.Intent }
func (r *request) Slots() map[string]string  { return r.env.Slots }
func (r *request) Session() platform.Session { return r.session }

func (r *request) Slot(name string) (string, bool) {
	v, ok := r.env.Slots[name]
	return v, ok
}

func (r *request) Say(ctx context.Context, composedSSML string) error {
	if composedSSML == "" {
		return fmt.Errorf("genericvoice: refusing to send empty speech (spec §7 user-visible failures)")
	}
	r.reply.speech = composedSSML
	return nil
}

func (r *request) ShouldEndSession(ctx context.Context, end bool) error {
	r.reply.endSession = end
	return nil
}

// replyRecorder accumulates what the engine produced for one turn so the
// HTTP handler can serialize it after the handler returns.
type replyRecorder struct {
	speech     string
	endSession bool
}
