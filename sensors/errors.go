package sensors

import (
	"os"

	"github.com/gr-butler/airsense/drivers/sensirion"
	"github.com/gr-butler/airsense/drivers/si70xx"
	"github.com/pkg/errors"

	"tinygo.org/x/drivers/aht20"
)

// errNotReady is returned by device readers with no new sample.
var errNotReady = errors.New("data not ready")

// Kind separates failures that disable a sensor from transient read failures.
type Kind int

const (
	KindInit Kind = iota + 1
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindRead:
		return "read"
	default:
		return "unknown"
	}
}

// Reason narrows a read failure.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidSample
	ReasonBus
	ReasonDevice
	ReasonTimeout
	ReasonNotReady
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidSample:
		return "invalid_sample"
	case ReasonBus:
		return "bus"
	case ReasonDevice:
		return "device"
	case ReasonTimeout:
		return "timeout"
	case ReasonNotReady:
		return "not_ready"
	default:
		return "none"
	}
}

// Error is the failure recorded on a sensor. Msg is the short human text
// shown by String(); Err keeps the driver cause for logs.
type Error struct {
	Kind   Kind
	Reason Reason
	Msg    string
	Err    error
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Err }

// Cause is used by github.com/pkg/errors.Cause.
func (e *Error) Cause() error { return e.Err }

func initError(msg string, cause error) *Error {
	return &Error{Kind: KindInit, Reason: ReasonDevice, Msg: msg, Err: cause}
}

func readError(reason Reason, msg string, cause error) *Error {
	return &Error{Kind: KindRead, Reason: reason, Msg: msg, Err: cause}
}

func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsInit reports whether err is an initialization failure.
func IsInit(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == KindInit
}

// IsRead reports whether err is a read failure.
func IsRead(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == KindRead
}

// ReasonOf returns the read failure reason, or ReasonNone.
func ReasonOf(err error) Reason {
	if e, ok := asError(err); ok {
		return e.Reason
	}
	return ReasonNone
}

// reasonFor classifies a driver error from the bus layer.
func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, sensirion.ErrNotReady), errors.Is(err, errNotReady):
		return ReasonNotReady
	case errors.Is(err, sensirion.ErrCRC), errors.Is(err, si70xx.ErrCRC):
		return ReasonInvalidSample
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, aht20.ErrTimeout):
		return ReasonTimeout
	default:
		return ReasonBus
	}
}
