package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLoginSucceeded    = "auth.login"
	EventTypeLoginFailed       = "auth.login_failed"
	EventTypeAccessDenied      = "authz.access_denied"
	EventTypePermissionCreated = "authz.permission_create"
	EventTypePermissionGranted = "authz.permission_grant"
	EventTypePermissionRevoked = "authz.permission_revoke"
	EventTypeUserCreated       = "admin.user_create"
	EventTypeUserUpdated       = "admin.user_update"
	EventTypePositionCreated   = "admin.position_create"
	EventTypePositionChanged   = "admin.position_change"
	EventTypeSignatureUploaded = "data.signature_upload"
	EventTypeSignupSubmitted   = "signup.submit"
	EventTypeSignupReviewed    = "signup.review"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// AuditEvent records who did what to which target and how it ended.
type AuditEvent struct {
	BaseEvent
	ActorID int64   `json:"actor_id"`
	Action  string  `json:"action"`
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target"`
}

func NewAuditEvent(action string, actorID int64, outcome Outcome, target string, details map[string]interface{}) *AuditEvent {
	if details == nil {
		details = map[string]interface{}{}
	}
	return &AuditEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      action,
			Timestamp: time.Now().UTC(),
			Data:      details,
		},
		ActorID: actorID,
		Action:  action,
		Outcome: outcome,
		Target:  target,
	}
}
