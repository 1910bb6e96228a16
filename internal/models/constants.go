package models

const (
	// StateAll and friends are the state tokens accepted by the booking
	// list filters. Matching is case-insensitive.
	StateAll      = "ALL"
	StateCurrent  = "CURRENT"
	StateFuture   = "FUTURE"
	StatePast     = "PAST"
	StateWaiting  = "WAITING"
	StateApproved = "APPROVED"
	StateRejected = "REJECTED"
)

const (
	// DefaultMaxBookingDays caps how far ahead a booking may start.
	DefaultMaxBookingDays = 365

	// DefaultListCacheTTLSeconds is the lifetime of cached booking lists.
	DefaultListCacheTTLSeconds = 30

	// DefaultRateLimitRPS and DefaultRateLimitBurst bound API clients
	// when the config leaves rate limiting unset.
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 5
)
