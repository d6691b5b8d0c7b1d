// Package validation holds the argument checks shared by the thread pool and
// the scheduler constructors.
//
// Every check returns a *errors.ValidationError naming the module and field,
// so callers can match it with errors.Is against ErrInvalidConfiguration.
// Values outside their bounds are rejected, never clamped.
package validation
