package failure

import (
	"context"
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

// StatusClientClosedRequest is the non standard status used when the client
// abandoned the request before it completed.
const StatusClientClosedRequest = 499

// Outcome is the terminal state of a request that went through the layer.
type Outcome int

const (
	// Processing means the request has not finished yet.
	Processing Outcome = iota
	// Completed means the request finished without a failure.
	Completed
	// Cancelled means the request was abandoned by its caller.
	Cancelled
	// ValidationFailed means the request input was rejected.
	ValidationFailed
	// Faulted means any other unhandled failure.
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case ValidationFailed:
		return "validation_failed"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Classify maps a failure to the outcome it produces.
//
// Only context.Canceled counts as cancellation; a deadline that expired on the server
// side is a fault.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Completed
	case errors.Is(err, context.Canceled):
		return Cancelled
	case isValidation(err):
		return ValidationFailed
	default:
		return Faulted
	}
}

func isValidation(err error) bool {
	if goerrors.IsValidation(err) {
		return true
	}

	var ozzoErrs validation.Errors
	if errors.As(err, &ozzoErrs) {
		return true
	}

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		return true
	}

	var fieldErrs goerrors.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// FieldErrors extracts the field level detail of a validation failure, in the order
// the validator reported it.
func FieldErrors(err error) goerrors.ValidationErrors {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && len(richErr.AllValidationErrors()) > 0 {
		return richErr.AllValidationErrors()
	}

	var ozzoErrs validation.Errors
	if errors.As(err, &ozzoErrs) {
		out := goerrors.FromOzzoValidation(ozzoErrs, "validation failed").AllValidationErrors()
		// ozzo reports fields as a map
		sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
		return out
	}

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		out := make(goerrors.ValidationErrors, 0, len(validatorErrs))
		for _, fe := range validatorErrs {
			out = append(out, goerrors.FieldError{
				Field:   fe.Field(),
				Message: fe.Tag(),
				Value:   fe.Value(),
			})
		}
		return out
	}

	var fieldErrs goerrors.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return nil
}
