package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every operation. Detail is attached by wrapping,
// so callers match with errors.Is. Anything else returned by an operation is
// a backend failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrInsufficientFunds = errors.New("saldo insuficiente")
	ErrGoalOverflow      = errors.New("el aporte excede el objetivo de la meta")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// Invalid wraps a validation failure as ErrInvalidParameters.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidParameters) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
}

// InsufficientFunds reports how much is missing to cover amount.
func InsufficientFunds(balance, amount Money) error {
	return fmt.Errorf("%w: faltan %s", ErrInsufficientFunds, amount.Sub(balance))
}

// GoalOverflow reports the remaining capacity of the goal.
func GoalOverflow(remaining Money) error {
	return fmt.Errorf("%w: máximo permitido: %s", ErrGoalOverflow, remaining)
}
