// Package platform defines the abstract contract the conversation engine
// consumes from a concrete voice/chat surface (spec §6). The core never
// imports a vendor SDK directly; every concrete integration — including the
// reference implementation in internal/adapters/genericvoice — depends on
// this package instead of the other way around.
package platform

import "context"

// Session is the platform-supplied key/value scope that survives between
// turns within one logical conversation (spec §3 Session, §6).
type Session interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	GetAttributes(ctx context.Context) (map[string]string, error)
}

// Request exposes one inbound turn's data (spec §6 PlatformRequest).
type Request interface {
	UserID() string
	IntentName() string
	Slots() map[string]string
	Slot(name string) (string, bool)
	Session() Session
	Say(ctx context.Context, composedSSML string) error
	ShouldEndSession(ctx context.Context, end bool) error
}

// IntentSpec is what the engine hands the platform when registering a
// compiled intent (spec §4.7 compile step, §6 regIntent).
type IntentSpec struct {
	Utterances []string
	Slots      map[string]string // slot name -> platform type code
}

// Handler is invoked by a platform when it has matched an intent (or, for
// launch/error, synthesized one).
type Handler func(ctx context.Context, req Request) error

// Platform is one concrete voice/chat surface a PlatformRegistry fans
// registrations out to (spec §6, §4.7).
type Platform interface {
	RegIntent(name string, spec IntentSpec, handler Handler) error
	RegCustomSlot(typeName string, values []string) error
	OnLaunch(handler Handler) error
	OnError(handler func(ctx context.Context, req Request, cause error)) error
}

// Registry fans registration calls out to every registered Platform (spec
// §4.8 "PlatformRegistry... Fan-out of intent/launch/error registrations to
// one or more platform adapters").
type Registry struct {
	platforms []Platform
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds a platform to the fan-out set.
func (r *Registry) Register(p Platform) { r.platforms = append(r.platforms, p) }

// Platforms returns the registered platforms.
func (r *Registry) Platforms() []Platform { return append([]Platform(nil), r.platforms...) }

// RegIntent fans an intent registration out to every platform. The first
// error encountered aborts the fan-out and is returned.
func (r *Registry) RegIntent(name string, spec IntentSpec, handler Handler) error {
	for _, p := range r.platforms {
		if err := p.RegIntent(name, spec, handler); err != nil {
			return err
		}
	}
	return nil
}

// RegCustomSlot fans a custom-slot registration out to every platform.
func (r *Registry) RegCustomSlot(typeName string, values []string) error {
	for _, p := range r.platforms {
		if err := p.RegCustomSlot(typeName, values); err != nil {
			return err
		}
	}
	return nil
}

// OnLaunch fans a launch-handler registration out to every platform.
func (r *Registry) OnLaunch(handler Handler) error {
	for _, p := range r.platforms {
		if err := p.OnLaunch(handler); err != nil {
			return err
		}
	}
	return nil
}

// OnError fans an error-handler registration out to every platform.
func (r *Registry) OnError(handler func(ctx context.Context, req Request, cause error)) error {
	for _, p := range r.platforms {
		if err := p.OnError(handler); err != nil {
			return err
		}
	}
	return nil
}
