package constants

import "github.com/go-playground/validator/v10"

// Validate is the shared validator instance used by request DTOs.
var Validate = validator.New(validator.WithRequiredStructEnabled())

type contextKey string

const (
	PoolKey    contextKey = "pool"
	TxKey      contextKey = "tx"
	ActorKey   contextKey = "actor"
	LoggerKey  contextKey = "logger"
	RequestID  contextKey = "requestID"
	RequestURL contextKey = "requestURL"
)
