package circuit

import "errors"

// ErrCircuitOpen is returned when the circuit breaker refuses the call
// (OPEN, or HALF_OPEN with no probe slot available) and no fallback was
// supplied.
var ErrCircuitOpen = errors.New("circuit: breaker is open")
