package constants

import "time"

// DefaultSessionTTL is the sliding-window lifetime of an onboarding session.
// Every successful mutation pushes expires_at forward by this amount.
const DefaultSessionTTL = 60 * time.Minute

// DefaultReaperSchedule is the cron spec for the expired-session sweep.
// Expiry is enforced lazily on access; the reaper only reclaims storage.
const DefaultReaperSchedule = "@every 15m"

// DefaultPort is the HTTP listen port when PORT is unset
const DefaultPort = "3002"

// API context/header keys
const (
	HeaderAuthorization = "Authorization"
	ContextKeyPrincipal = "principal"
	ResponseError       = "error"
	FieldMessage        = "message"
)
