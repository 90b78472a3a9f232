// Package genericvoice is the reference platform.Platform implementation:
// two HTTP endpoints (/webhook and /launch) carrying a signed JSON envelope, grounded
// on the teacher's gorilla/mux routing (internal/handler/routes.go) and its
// HMAC/JWT webhook verification (internal/handler/wati_webhook_handler.go,
// internal/handler/middleware.go), retargeted from WhatsApp/Wati payloads
// to the engine's abstract intent+slot contract.
package genericvoice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tingiris/violet-convo/internal/platform"
	"github.com/tingiris/violet-convo/internal/store/sessionkv"
	"github.com/tingiris/violet-convo/pkg/logger"
)

// claims is the JWT payload a webhook caller signs with the shared secret;
// it carries the envelope inline instead of a separate body so the whole
// request is covered by the signature.
type claims struct {
	jwt.RegisteredClaims
	Envelope envelope `json:"envelope"`
}

// Adapter is a platform.Platform backed by one HTTP mux and one signing
// secret. Multiple Adapters (one per tenant/channel) can be registered with
// the same platform.Registry.
type Adapter struct {
	mu sync.RWMutex

	secret    []byte
	sessions  *sessionkv.Store
	router    *mux.Router
	intents   map[string]platform.Handler
	slotTypes map[string][]string
	launch    platform.Handler
	onError   func(ctx context.Context, req platform.Request, cause error)
}

// New builds an Adapter. secret signs/verifies every inbound envelope's
// JWT; sessions backs platform.Session for every request.
func New(secret string, sessions *sessionkv.Store) *Adapter {
	a := &Adapter{
		secret:    []byte(secret),
		sessions:  sessions,
		intents:   make(map[string]platform.Handler),
		slotTypes: make(map[string][]string),
	}
	a.router = mux.NewRouter()
	a.router.HandleFunc("/webhook", a.handleWebhook).Methods(http.MethodPost)
	a.router.HandleFunc("/launch", a.handleLaunch).Methods(http.MethodPost)
	return a
}

// Router exposes the mux.Router for cmd/server to mount under http.Server.
func (a *Adapter) Router() *mux.Router { return a.router }

// RegIntent implements platform.Platform.
func (a *Adapter) RegIntent(name string, spec platform.IntentSpec, handler platform.Handler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.intents[name]; dup {
		return fmt.Errorf("genericvoice: intent %q already registered", name)
	}
	a.intents[name] = handler
	return nil
}

// RegCustomSlot implements platform.Platform.
func (a *Adapter) RegCustomSlot(typeName string, values []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slotTypes[typeName] = values
	return nil
}

// OnLaunch implements platform.Platform.
func (a *Adapter) OnLaunch(handler platform.Handler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.launch = handler
	return nil
}

// OnError implements platform.Platform.
func (a *Adapter) OnError(handler func(ctx context.Context, req platform.Request, cause error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = handler
	return nil
}

func (a *Adapter) verify(r *http.Request) (*claims, error) {
	authz := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authz, "Bearer ")
	if token == "" || token == authz {
		return nil, fmt.Errorf("missing bearer token")
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verifying webhook token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid webhook token")
	}
	return c, nil
}

func (a *Adapter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	c, err := a.verify(r)
	if err != nil {
		logger.Base().Warn("genericvoice: rejecting webhook", zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	a.mu.RLock()
	handler, ok := a.intents[c.Envelope.Intent]
	a.mu.RUnlock()
	if !ok {
		logger.Base().Warn("genericvoice: unknown intent", zap.String("intent", c.Envelope.Intent))
		http.Error(w, "unknown intent", http.StatusBadRequest)
		return
	}

	a.dispatch(w, r, c.Envelope, handler)
}

func (a *Adapter) handleLaunch(w http.ResponseWriter, r *http.Request) {
	c, err := a.verify(r)
	if err != nil {
		logger.Base().Warn("genericvoice: rejecting launch", zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	a.mu.RLock()
	handler := a.launch
	a.mu.RUnlock()
	if handler == nil {
		http.Error(w, "launch not configured", http.StatusNotFound)
		return
	}
	a.dispatch(w, r, c.Envelope, handler)
}

func (a *Adapter) dispatch(w http.ResponseWriter, r *http.Request, env envelope, handler platform.Handler) {
	if env.UserID == "" {
		env.UserID = uuid.NewString()
	}

	reply := &replyRecorder{}
	req := &request{env: env, session: a.sessions.Session(env.UserID), reply: reply}

	if err := handler(r.Context(), req); err != nil {
		logger.Base().Error("genericvoice: handler failed", zap.Error(err))
		a.mu.RLock()
		onError := a.onError
		a.mu.RUnlock()
		if onError != nil {
			onError(r.Context(), req, err)
		} else {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"speech":      reply.speech,
		"end_session": reply.endSession,
	})
}
