package logger

import (
	"fmt"
	"strconv"

	"github.com/docspp/docspp/internal/istime"
)

// Audit renders the append-only operational log line,
// "[IST timestamp] <component>: <op> user=<u> details=<kv> result=<n>".
// It is emitted in addition to (not instead of) the structured slog
// record, so operational logs keep both a grep-able plain line and
// machine-parseable fields.
func Audit(component, op, user, details string, result int) {
	line := fmt.Sprintf("[%s] %s: %s user=%s details=%s result=%d",
		istime.Now(), component, op, user, details, result)
	Info(line, Component(component), Op(op), User(user), Result(strconv.Itoa(result)))
}
