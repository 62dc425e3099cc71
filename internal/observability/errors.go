package observability

import (
	"errors"
	"fmt"

	"github.com/foliostack/tradeledger/errs"
)

// AggregateErrors joins multiple errors, emits a structured log entry and
// returns a classified error. The aggregate carries the code of the first
// non-retryable member so callers do not retry a batch that contains a
// permanent failure; otherwise it carries the first member's code.
func AggregateErrors(operation string, batch []error, fields ...Field) error {
	filtered := make([]error, 0, len(batch))
	messages := make([]string, 0, len(batch))
	for _, err := range batch {
		if err == nil {
			continue
		}
		filtered = append(filtered, err)
		messages = append(messages, err.Error())
	}
	if len(filtered) == 0 {
		return nil
	}
	logFields := append(fields,
		Field{Key: "operation", Value: operation},
		Field{Key: "error_count", Value: len(filtered)},
		Field{Key: "errors", Value: messages},
	)
	Log().Error("operation errors", logFields...)

	code := errs.CodeOf(filtered[0])
	for _, err := range filtered {
		if !errs.Retryable(err) {
			code = errs.CodeOf(err)
			break
		}
	}
	joined := errors.Join(filtered...)
	return errs.New(operation, code,
		errs.WithMessage(fmt.Sprintf("%d errors", len(filtered))),
		errs.WithCause(joined))
}
