package clgrperrors

import "errors"

var (
	ErrInvalidArgument    = errors.New("clgrpell: invalid argument")
	ErrMissingInput       = errors.New("clgrpell: missing input shard")
	ErrTooFewProcesses    = errors.New("clgrpell: need at least 2 processes (1 coordinator + 1 worker)")
	ErrPrimeTableTooSmall = errors.New("clgrpell: prime table too small")
	ErrTableUndersized    = errors.New("clgrpell: factor table undersized")
	ErrInputUnavailable   = errors.New("clgrpell: input shard unavailable")
	ErrStructureTimedOut  = errors.New("clgrpell: structure computation timed out")
	ErrOrderMismatch      = errors.New("clgrpell: group order mismatch")
	ErrProtocol           = errors.New("clgrpell: dispatch protocol violation")
	ErrWorkerFatal        = errors.New("clgrpell: worker reported a fatal error")
	ErrNoWorkerSlot       = errors.New("clgrpell: all worker slots are taken")
)

// IsFatal reports whether err must abort the whole run rather than a single shard.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrMissingInput),
		errors.Is(err, ErrTooFewProcesses),
		errors.Is(err, ErrPrimeTableTooSmall),
		errors.Is(err, ErrTableUndersized),
		errors.Is(err, ErrProtocol),
		errors.Is(err, ErrWorkerFatal):
		return true
	default:
		return false
	}
}
