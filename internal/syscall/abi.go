package syscall

import "errors"

// Args is the typed argument bundle a dispatch handler receives, extracted from the trap frame's
// accumulator and argument registers. Handlers never see the raw register frame, matching
// spec.md §4.7's "typed argument bundle {num, arg1..arg6}".
type Args struct {
	Num  uint64
	Arg1 uint64
	Arg2 uint64
	Arg3 uint64
	Arg4 uint64
	Arg5 uint64
	Arg6 uint64
}

// Handler services one syscall number. It returns the value to place in the return register on
// success, or a non-nil error (ordinarily *Error) that Dispatch negates into an errno-style
// negative return value.
type Handler func(a Args) (uint64, error)

// ResultToRegister converts a handler's (value, error) pair into the signed register value the
// trap return path writes back, matching spec.md §4.7: Ok(v) becomes v, Err(e) becomes -(e as
// isize). A non-*Error failure is reported as ErrUnknown rather than panicking, since a handler
// bug must not be allowed to corrupt the return register contract.
func ResultToRegister(value uint64, err error) int64 {
	if err == nil {
		return int64(value)
	}

	kind := ErrUnknown

	var se *Error
	if errors.As(err, &se) {
		kind = se.Kind
	}

	return -int64(kind)
}
