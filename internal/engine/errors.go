package engine

import "errors"

// Error taxonomy for the action/report pipeline. NoMatch and SafetyLimit are
// normal outcomes recovered into structured results at the processor boundary;
// the rest surface as failed executions or request errors, never as crashes.
var (
	ErrNoMatch               = errors.New("no matching action")
	ErrConfig                = errors.New("invalid configuration")
	ErrSafetyLimit           = errors.New("safety limit exceeded")
	ErrInvalidTransition     = errors.New("invalid execution state transition")
	ErrUnsupportedActionType = errors.New("unsupported action type")
	ErrDataSourceMissing     = errors.New("data source has no entity")
	ErrUpstream              = errors.New("upstream unavailable")
	ErrNotFound              = errors.New("not found")
)
