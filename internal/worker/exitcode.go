package worker

import "fmt"

// Windows ACCESS_VIOLATION surfaces as this code (or its signed reading)
// when native simulation plugins crash.
const (
	winAccessViolation       = 3221225477
	winAccessViolationSigned = -1073741819
)

// InterpretExitCode maps a process exit code to a human-readable
// explanation for logs and run metadata.
func InterpretExitCode(code int) string {
	switch {
	case code == 0:
		return "success"
	case code == 1:
		return "simulation error (check stderr log)"
	case code == winAccessViolation || code == winAccessViolationSigned:
		return "access violation in native simulation code; try a lower write frequency or smaller lattice"
	case code == -1:
		// A signal death whose signal number was not recoverable, or a
		// process that never produced an exit status.
		return "terminated abnormally"
	case code < 0:
		return fmt.Sprintf("killed by signal %d", -code)
	default:
		return fmt.Sprintf("unknown error (exit code %d)", code)
	}
}
