package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/session"
)

// Format formats an error message with a consistent "Error: " prefix.
// Backend errors carry the service's message, which is shown verbatim.
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Hint suggests what to do about err, or returns "" when there is nothing to add.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, session.ErrNotAuthenticated):
		return "Sign in first with 'habitual signin'."
	case backend.KindOf(err) == backend.KindNetwork:
		return "Check your connection, then run 'habitual doctor'."
	}
	return ""
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		if hint := Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s\n", hint)
		}
		os.Exit(1)
	}
}

// Fatalf logs a formatted error and exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := Formatf(format, args...)
	logger.Error("Command execution failed", "error", fmt.Sprintf(format, args...))
	fmt.Fprintf(os.Stderr, "%s\n", msg)
	os.Exit(1)
}
