package services

import (
	"context"
	"fmt"

	"github.com/costline/costline/pkg/composables"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func inTx[T any](ctx context.Context, fn func(txCtx context.Context) (T, error)) (T, error) {
	return composables.InTxResult(ctx, fn)
}
