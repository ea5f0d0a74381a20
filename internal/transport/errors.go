package transport

import "fmt"

// ConnReason distinguishes connect failures.
type ConnReason int

const (
	ReasonAuthFailed ConnReason = iota
	ReasonNetworkUnreachable
	ReasonTimeout
	ReasonLoginTimeout
)

func (r ConnReason) String() string {
	switch r {
	case ReasonAuthFailed:
		return "authentication failed"
	case ReasonNetworkUnreachable:
		return "network unreachable"
	case ReasonTimeout:
		return "connect timed out"
	case ReasonLoginTimeout:
		return "login timed out"
	default:
		return "connection error"
	}
}

// ConnError is a fatal connect failure. It is surfaced to the caller and
// never silently retried outside the configured reconnect policy.
type ConnError struct {
	Reason ConnReason
	Err    error
}

func (e *ConnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason.String()
}

func (e *ConnError) Unwrap() error { return e.Err }

// SendReason distinguishes send failures.
type SendReason int

const (
	ReasonNotConnected SendReason = iota
	ReasonBackpressure
)

func (r SendReason) String() string {
	switch r {
	case ReasonNotConnected:
		return "not connected"
	case ReasonBackpressure:
		return "send backpressure"
	default:
		return "send error"
	}
}

// SendError is a synchronous send failure. The caller must resend; the core
// never retries on its own.
type SendError struct {
	Reason SendReason
}

func (e *SendError) Error() string { return e.Reason.String() }
