package model

// Role is a named bundle of permission strings. A user has exactly one role.
type Role struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Permission tags used by the route guards. The set is open: roles may carry
// tags beyond these, guards only ever test membership.
const (
	PermConfigWrite  = "config.write"
	PermConfigDelete = "config.delete"
	PermUsersRead    = "users.read"
	PermUsersRoles   = "users.roles"
	PermLogsRead     = "logs.read"
)

// DefaultRoleName is assigned to newly registered users.
const DefaultRoleName = "viewer"
