package errordata

import (
	"context"
)

type key struct{}

var errorDataKey key

// ErrorData carries the failure a handler reported so middleware can log it
// after the response is written.
type ErrorData struct {
	Status  int
	Message string
}

func WithErrorData(ctx context.Context) context.Context {
	return context.WithValue(ctx, errorDataKey, &ErrorData{})
}

func GetErrorData(ctx context.Context) *ErrorData {
	ed, ok := ctx.Value(errorDataKey).(*ErrorData)
	if !ok {
		return nil
	}
	return ed
}

func (ed *ErrorData) Set(status int, msg string) {
	ed.Status = status
	ed.Message = msg
}

func (ed *ErrorData) HasMessage() bool {
	return ed.Message != ""
}
