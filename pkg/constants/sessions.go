package constants

// SessionStatus is the lifecycle status of an onboarding session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// IsTerminalStatus reports whether a session in this status can never be
// advanced again. Paused and abandoned are advisory and do not block
// resumption before expiry.
func IsTerminalStatus(s SessionStatus) bool {
	return s == SessionStatusExpired || s == SessionStatusCompleted
}
