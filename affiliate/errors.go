package affiliate

import (
	"errors"

	"github.com/cppla/affiliate/models"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the current balance.
	ErrInsufficientFunds = models.ErrInsufficientFunds
	// ErrInvalidAmount is returned for negative ledger amounts.
	ErrInvalidAmount = models.ErrInvalidAmount

	ErrNotFound          = errors.New("not found")
	ErrNotImplemented    = errors.New("not implemented by integrator")
	ErrAlreadyAffiliate  = errors.New("user already has an affiliate account")
	ErrInvalidTransition = errors.New("invalid payout status transition")
	ErrBelowMinimum      = errors.New("balance below minimum payout amount")
	ErrPayoutPending     = errors.New("a payout request is already pending")
)

// FormError is a validation failure meant to be shown next to a form field.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string { return e.Field + ": " + e.Message }

// AsFormError unwraps err into a *FormError when it is one.
func AsFormError(err error) (*FormError, bool) {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
