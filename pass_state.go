package gpucmd

import "fmt"

// PassState represents the state of a render, copy or compute pass.
type PassState int

const (
	// PassUnbound means the pass wrapper is idle in its pool.
	PassUnbound PassState = iota

	// PassOpen means the pass accepts commands.
	PassOpen

	// PassClosed means End was called. The wrapper is on its way back to
	// the pool.
	PassClosed
)

// String returns the string representation of PassState.
func (s PassState) String() string {
	switch s {
	case PassUnbound:
		return "Unbound"
	case PassOpen:
		return "Open"
	case PassClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// checkPassOpen maps a pass state to the stale-use error for calls that
// need an open pass. End returns the wrapper to its pool right away, so a
// reference kept past End sees PassUnbound.
func checkPassOpen(s PassState) error {
	switch s {
	case PassOpen:
		return nil
	case PassClosed, PassUnbound:
		return ErrPassClosed
	default:
		return fmt.Errorf("%w: pass is %s", ErrStaleUse, s)
	}
}
