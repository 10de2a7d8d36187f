// Package audit records best-effort activity events. Events travel through
// a durable message queue to the activity_logs table; when the broker is
// unreachable they fall back to a direct insert. Either way a failure is
// only logged, never propagated to the request that triggered it.
package audit

import "time"

// queueName is the durable queue activity events are published to.
const queueName = "activity.log"

// Action tags written by the auth and config handlers.
const (
	ActionRegister     = "USER_REGISTER"
	ActionLogin        = "USER_LOGIN"
	ActionLogout       = "USER_LOGOUT"
	ActionRoleChange   = "USER_ROLE_CHANGE"
	ActionConfigRead   = "CONFIG_READ"
	ActionConfigUpdate = "CONFIG_UPDATE"
	ActionConfigDelete = "CONFIG_DELETE"
)

// Event is one activity record in flight.
type Event struct {
	ID        string    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	At        time.Time `json:"at"`
}
