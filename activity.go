package userpool

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess          ActivityEventType = "pool.signin.success"
	ActivityEventSignInFailure          ActivityEventType = "pool.signin.failure"
	ActivityEventSignInChallenge        ActivityEventType = "pool.signin.challenge"
	ActivityEventSignUp                 ActivityEventType = "pool.signup"
	ActivityEventSignUpConfirmed        ActivityEventType = "pool.signup.confirmed"
	ActivityEventRefreshSuccess         ActivityEventType = "pool.refresh.success"
	ActivityEventRefreshFailure         ActivityEventType = "pool.refresh.failure"
	ActivityEventSignOut                ActivityEventType = "pool.signout"
	ActivityEventSignOutRemoteFailure   ActivityEventType = "pool.signout.remote_failure"
	ActivityEventPasswordResetRequested ActivityEventType = "pool.password.reset_requested"
	ActivityEventPasswordResetConfirmed ActivityEventType = "pool.password.reset"
)

// ActivityEvent captures audit-friendly information about a session action.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	UserSub    string
	FromState  SessionState
	ToState    SessionState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
