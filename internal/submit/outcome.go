package submit

import (
	"errors"

	"public-order-engine/internal/order"
	"public-order-engine/internal/publicapi"
)

type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "SUCCESS"
	OutcomeRetryable OutcomeKind = "RETRYABLE_FAILURE"
	OutcomeTerminal  OutcomeKind = "TERMINAL_FAILURE"
)

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Kind   OutcomeKind
	Order  order.ServerOrder
	Reason string
}

func Success(o order.ServerOrder) Outcome {
	return Outcome{Kind: OutcomeSuccess, Order: o}
}

func RetryableFailure(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

func TerminalFailure(reason string) Outcome {
	return Outcome{Kind: OutcomeTerminal, Reason: reason}
}

// Classify maps a CreateOrder result onto an outcome. Only transport errors
// are retried; anything else would fail the same way again.
func Classify(created order.ServerOrder, err error) Outcome {
	if err == nil {
		return Success(created)
	}
	var business *publicapi.BusinessError
	if errors.As(err, &business) {
		return TerminalFailure(business.Message)
	}
	if publicapi.IsRetryable(err) {
		return RetryableFailure(err.Error())
	}
	return TerminalFailure(err.Error())
}
