// Package wizard implements the operator's multi-step granting flow. The
// working state is durable so a half-finished wizard survives process
// restarts; the request transition inside Confirm is the concurrency gate.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/proxyward/proxyward/internal/access"
	"github.com/proxyward/proxyward/internal/request"
)

var (
	// ErrSessionExpired indicates the wizard session vanished before
	// confirm, typically reaped; the operator must restart the flow.
	ErrSessionExpired = errors.New("wizard session expired")

	// ErrInvalidStep indicates an action that is not legal from the
	// session's current step, e.g. a stale confirm button.
	ErrInvalidStep = errors.New("action not valid for current wizard step")

	// ErrInvalidChoice indicates a device limit or expiry value outside
	// the offered set.
	ErrInvalidChoice = errors.New("value is not an offered choice")
)

// Quick-grant profile: five devices, no expiry.
const (
	QuickGrantDevices = 5
	QuickGrantDays    = 0
)

// Grant is the outcome of a completed wizard or quick grant.
type Grant struct {
	RequestID   string
	UserID      int64
	DeviceLimit int
	ExpiresAt   *time.Time
}

// Service is the wizard state machine over durable sessions.
type Service struct {
	sessions Repository
	requests *request.Service
	access   *access.Evaluator

	defaultDevices int
	defaultDays    int
}

// NewService builds the wizard service. The defaults seed every freshly
// started session.
func NewService(sessions Repository, requests *request.Service, evaluator *access.Evaluator, defaultDevices, defaultDays int) *Service {
	return &Service{
		sessions:       sessions,
		requests:       requests,
		access:         evaluator,
		defaultDevices: defaultDevices,
		defaultDays:    defaultDays,
	}
}

// Start opens (or restarts) the wizard for a pending request. A restart
// resets the working values and the step; there is at most one session per
// request.
func (s *Service) Start(ctx context.Context, requestID string, operatorID int64) (Session, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return Session{}, err
	}
	if req.Status != request.StatusPending {
		return Session{}, request.ErrAlreadyProcessed
	}
	session := Session{
		RequestID:   requestID,
		OperatorID:  operatorID,
		DeviceLimit: s.defaultDevices,
		ExpiresDays: s.defaultDays,
		Step:        StepSelectingDevices,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return s.sessions.Get(ctx, requestID)
}

// SetDevices stores the chosen device limit and advances to expiry
// selection. Replays simply overwrite the working value. A missing session
// is recreated on the fly so a stale keyboard still works.
func (s *Service) SetDevices(ctx context.Context, requestID string, operatorID int64, limit int) (Session, error) {
	if !ValidDeviceChoice(limit) {
		return Session{}, fmt.Errorf("%w: %d devices", ErrInvalidChoice, limit)
	}
	session, err := s.sessions.Get(ctx, requestID)
	if errors.Is(err, ErrNotFound) {
		session = Session{
			RequestID:   requestID,
			OperatorID:  operatorID,
			ExpiresDays: s.defaultDays,
		}
	} else if err != nil {
		return Session{}, err
	}
	session.DeviceLimit = limit
	session.Step = StepSelectingExpiry
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return s.sessions.Get(ctx, requestID)
}

// SetExpiry stores the chosen duration and advances to confirmation. It is
// legal straight from device selection: the default limit then carries
// through to confirm.
func (s *Service) SetExpiry(ctx context.Context, requestID string, operatorID int64, days int) (Session, error) {
	if !ValidExpiryChoice(days) {
		return Session{}, fmt.Errorf("%w: %d days", ErrInvalidChoice, days)
	}
	session, err := s.sessions.Get(ctx, requestID)
	if errors.Is(err, ErrNotFound) {
		session = Session{
			RequestID:   requestID,
			OperatorID:  operatorID,
			DeviceLimit: s.defaultDevices,
		}
	} else if err != nil {
		return Session{}, err
	}
	session.ExpiresDays = days
	session.Step = StepConfirming
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return s.sessions.Get(ctx, requestID)
}

// BackToDevices returns to device selection, keeping the stored expiry.
func (s *Service) BackToDevices(ctx context.Context, requestID string) (Session, error) {
	return s.stepBack(ctx, requestID, StepSelectingDevices)
}

// BackToExpiry returns to expiry selection, keeping the stored limit.
func (s *Service) BackToExpiry(ctx context.Context, requestID string) (Session, error) {
	return s.stepBack(ctx, requestID, StepSelectingExpiry)
}

func (s *Service) stepBack(ctx context.Context, requestID string, to Step) (Session, error) {
	session, err := s.sessions.Get(ctx, requestID)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrSessionExpired
	}
	if err != nil {
		return Session{}, err
	}
	session.Step = to
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return s.sessions.Get(ctx, requestID)
}

// Confirm finalizes the wizard: it transitions the request to approved
// (the single atomic gate — the first of two simultaneous confirms wins),
// applies the grant and deletes the session. Missing session fails with
// ErrSessionExpired; a session not yet at the confirm step is rejected.
func (s *Service) Confirm(ctx context.Context, requestID string) (Grant, error) {
	session, err := s.sessions.Get(ctx, requestID)
	if errors.Is(err, ErrNotFound) {
		return Grant{}, ErrSessionExpired
	}
	if err != nil {
		return Grant{}, err
	}
	if session.Step != StepConfirming {
		return Grant{}, ErrInvalidStep
	}

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return Grant{}, err
	}
	if err := s.requests.Transition(ctx, requestID, request.StatusApproved); err != nil {
		return Grant{}, err
	}

	grant := Grant{
		RequestID:   requestID,
		UserID:      req.UserID,
		DeviceLimit: session.DeviceLimit,
		ExpiresAt:   expiryFromDays(session.ExpiresDays, time.Now().UTC()),
	}
	if err := s.access.Grant(ctx, grant.UserID, grant.DeviceLimit, grant.ExpiresAt); err != nil {
		return Grant{}, err
	}
	// Delivery of the outcome is the caller's concern; the grant above is
	// committed no matter what happens after this point.
	if err := s.sessions.Delete(ctx, requestID); err != nil {
		return grant, err
	}
	return grant, nil
}

// QuickGrant approves with the fixed profile, bypassing all steps. Any
// pre-existing session for the request is cleared first.
func (s *Service) QuickGrant(ctx context.Context, requestID string) (Grant, error) {
	if err := s.sessions.Delete(ctx, requestID); err != nil {
		return Grant{}, err
	}
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return Grant{}, err
	}
	if err := s.requests.Transition(ctx, requestID, request.StatusApproved); err != nil {
		return Grant{}, err
	}
	grant := Grant{
		RequestID:   requestID,
		UserID:      req.UserID,
		DeviceLimit: QuickGrantDevices,
	}
	if err := s.access.Grant(ctx, grant.UserID, grant.DeviceLimit, nil); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Cancel abandons the wizard. The request stays pending; a missing session
// is not an error. Also used when a request is denied, banned or reopened
// so no orphan session survives the terminal action.
func (s *Service) Cancel(ctx context.Context, requestID string) error {
	return s.sessions.Delete(ctx, requestID)
}

// Session returns the current working state for a request.
func (s *Service) Session(ctx context.Context, requestID string) (Session, error) {
	return s.sessions.Get(ctx, requestID)
}

// ReapStale deletes sessions untouched for longer than maxAge. Runs once
// at startup; underlying requests are never touched.
func (s *Service) ReapStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.sessions.DeleteOlderThan(ctx, time.Now().UTC().Add(-maxAge))
}

func expiryFromDays(days int, now time.Time) *time.Time {
	if days == 0 {
		return nil
	}
	t := now.Add(time.Duration(days) * 24 * time.Hour)
	return &t
}
