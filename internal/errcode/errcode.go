package errcode

// Outcome codes:
// - 0: success
// - 4xxx: recoverable, the user can act on it
// - 5xxx: system failure
const (
	OK               = 0
	Unauthorized     = 4001
	ResourceMissing  = 4004
	ValidationFailed = 4022
	RateLimited      = 4029
	UpstreamRejected = 4200

	SystemError         = 5000
	UpstreamUnavailable = 5002
)
