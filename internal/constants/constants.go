package constants

// Session and request context keys
const (
	SessionCookieName  = "task_session"
	ContextKeyUserID   = "user_id"
	ContextKeyIdentity = "identity"
)

// Account rules
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72 // bcrypt input limit
	MinUsernameLength = 3
	MaxUsernameLength = 20
)

// Task views
const (
	DefaultUpcomingWindowDays = 7
	MaxUpcomingWindowDays     = 365
	RecentTasksLimit          = 5
	MaxTaskTitleLength        = 255
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 100000
)
