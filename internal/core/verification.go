package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authgate-backend-go/internal/autherr"
	"authgate-backend-go/internal/identity"
	"authgate-backend-go/internal/phone"
)

// FlowState is a verification flow's position in its state machine.
type FlowState string

const (
	StateIdle     FlowState = "idle"
	StateCodeSent FlowState = "code_sent"
	StateVerified FlowState = "verified"
)

var (
	// ErrFlowNotFound is returned for an unknown or expired flow ID.
	ErrFlowNotFound = errors.New("verification flow not found")
	// ErrFlowBusy is returned when a send or verify is already in flight
	// for the flow.
	ErrFlowBusy = errors.New("verification request already in progress")
	// ErrCodeAlreadySent is returned for a send while a challenge is
	// pending; the number must be changed first.
	ErrCodeAlreadySent = errors.New("verification code already sent; change the number to request a new one")
	// ErrNoCodeSent is returned for a verify before any challenge was
	// issued.
	ErrNoCodeSent = errors.New("request a verification code first")
)

// Flow is one form instance's verification state machine:
// Idle -> CodeSent -> Verified, with reverts to Idle on change-number,
// method switch and abandonment. The flow owns the challenge handle and
// releases it on every exit path.
type Flow struct {
	ID      string
	Purpose Purpose

	mu        sync.Mutex
	state     FlowState
	busy      bool
	phone     string
	challenge *identity.Challenge
	touchedAt time.Time
}

// State returns the flow's current state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// VerificationID returns the pending challenge's verification ID, if any.
func (f *Flow) VerificationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.challenge == nil {
		return ""
	}
	return f.challenge.VerificationID
}

// acquire marks the flow busy for the duration of a send/verify task.
// Re-entrant sends (a double-clicked trigger) are rejected instead of
// issuing concurrent challenges.
func (f *Flow) acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrFlowBusy
	}
	f.busy = true
	f.touchedAt = time.Now()
	return nil
}

func (f *Flow) release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

// reset reverts the flow to Idle, discarding the pending challenge. A flow
// with a send or verify in flight is not reset; the settling operation owns
// the state until it releases the flow.
func (f *Flow) reset() error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrFlowBusy
	}
	ch := f.challenge
	f.challenge = nil
	f.phone = ""
	f.state = StateIdle
	f.touchedAt = time.Now()
	f.mu.Unlock()
	if ch != nil {
		ch.Clear()
	}
	return nil
}

// FlowRegistry tracks active verification flows by opaque ID. One flow is
// active per form instance; abandoned flows are swept after flowTTL.
type FlowRegistry struct {
	auth   AuthService
	logger *zap.Logger

	mu    sync.Mutex
	flows map[string]*Flow
}

const flowTTL = 15 * time.Minute

// NewFlowRegistry creates a registry bound to the auth session controller.
func NewFlowRegistry(auth AuthService, logger *zap.Logger) *FlowRegistry {
	return &FlowRegistry{
		auth:   auth,
		logger: logger,
		flows:  make(map[string]*Flow),
	}
}

// StartFlow opens a new verification flow for the given purpose.
func (r *FlowRegistry) StartFlow(purpose Purpose) *Flow {
	f := &Flow{
		ID:        uuid.NewString(),
		Purpose:   purpose,
		state:     StateIdle,
		touchedAt: time.Now(),
	}
	r.mu.Lock()
	r.flows[f.ID] = f
	r.mu.Unlock()
	return f
}

func (r *FlowRegistry) get(flowID string) (*Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return f, nil
}

// SendCode transitions Idle -> CodeSent. The raw input is normalized and
// validated before anything reaches the provider; membership gates and
// challenge issue are delegated to the auth service.
func (r *FlowRegistry) SendCode(ctx context.Context, flowID, rawPhone, captchaToken string) (*Flow, error) {
	f, err := r.get(flowID)
	if err != nil {
		return nil, err
	}
	if err := f.acquire(); err != nil {
		return nil, err
	}
	defer f.release()

	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return nil, ErrCodeAlreadySent
	}
	f.mu.Unlock()

	canonical := phone.Normalize(rawPhone)
	if !phone.IsValid(canonical) {
		return nil, autherr.ErrInvalidPhoneFormat
	}

	challenge, err := r.auth.SendPhoneVerification(ctx, canonical, f.Purpose, captchaToken)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.phone = canonical
	f.challenge = challenge
	f.state = StateCodeSent
	f.touchedAt = time.Now()
	f.mu.Unlock()
	return f, nil
}

// Verify transitions CodeSent -> Verified. A mismatched code leaves the flow
// in CodeSent so the code can be re-entered without a new challenge. The
// challenge is released once the flow reaches a terminal state.
func (r *FlowRegistry) Verify(ctx context.Context, flowID, code, rawPhone string) (*identity.Session, error) {
	f, err := r.get(flowID)
	if err != nil {
		return nil, err
	}
	if err := f.acquire(); err != nil {
		return nil, err
	}
	defer f.release()

	f.mu.Lock()
	if f.state != StateCodeSent || f.challenge == nil {
		f.mu.Unlock()
		return nil, ErrNoCodeSent
	}
	verificationID := f.challenge.VerificationID
	challengePhone := f.phone
	f.mu.Unlock()

	if code == "" {
		return nil, autherr.ErrInvalidCode
	}
	// The verification ID is authoritative only for the number it was issued
	// for; a changed form value must not redeem the old challenge.
	if phone.Normalize(rawPhone) != challengePhone {
		return nil, autherr.ErrInvalidCode
	}

	sess, err := r.auth.VerifyPhoneCode(ctx, verificationID, code, challengePhone)
	if err != nil {
		// Stay in CodeSent; the user may re-enter the code.
		return nil, err
	}

	f.mu.Lock()
	ch := f.challenge
	f.challenge = nil
	f.state = StateVerified
	f.mu.Unlock()
	if ch != nil {
		ch.Clear()
	}
	r.remove(flowID)
	return sess, nil
}

// ChangeNumber transitions CodeSent -> Idle: the pending challenge and
// entered code are discarded and the phone input is re-enabled.
func (r *FlowRegistry) ChangeNumber(flowID string) error {
	f, err := r.get(flowID)
	if err != nil {
		return err
	}
	return f.reset()
}

// SwitchMethod handles an auth-method tab switch: any pending challenge is
// torn down so a stale widget cannot be reused, and the flow reverts to
// Idle.
func (r *FlowRegistry) SwitchMethod(flowID string) error {
	f, err := r.get(flowID)
	if err != nil {
		return err
	}
	return f.reset()
}

// Abandon discards the flow entirely (navigation away / unmount). A flow
// with a send or verify in flight stays registered until the operation
// settles; the sweeper reclaims it afterwards.
func (r *FlowRegistry) Abandon(flowID string) {
	r.mu.Lock()
	f, ok := r.flows[flowID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if f.reset() != nil {
		return
	}
	r.remove(flowID)
}

func (r *FlowRegistry) remove(flowID string) {
	r.mu.Lock()
	delete(r.flows, flowID)
	r.mu.Unlock()
}

// Sweep drops flows idle longer than flowTTL, releasing their challenges.
func (r *FlowRegistry) Sweep() {
	cutoff := time.Now().Add(-flowTTL)
	r.mu.Lock()
	var expired []*Flow
	for id, f := range r.flows {
		f.mu.Lock()
		stale := f.touchedAt.Before(cutoff) && !f.busy
		f.mu.Unlock()
		if stale {
			delete(r.flows, id)
			expired = append(expired, f)
		}
	}
	r.mu.Unlock()

	for _, f := range expired {
		f.reset()
	}
	if len(expired) > 0 {
		r.logger.Info("swept expired verification flows", zap.Int("count", len(expired)))
	}
}

// RunSweeper periodically sweeps abandoned flows until ctx is done.
func (r *FlowRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
