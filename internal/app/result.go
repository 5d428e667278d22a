// Package app holds the client-side page controllers. Each controller owns
// its view state, reads through port.DataService only after the caller's
// authorization context has settled, and reports every action as a Result.
package app

import (
	"context"
	"errors"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Kind classifies the outcome of a controller action
type Kind string

const (
	KindOK              Kind = "ok"
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUnavailable     Kind = "unavailable"
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
	KindSchema          Kind = "schema"
	KindBusy            Kind = "busy"
	KindNotReady        Kind = "not_ready"
	KindIndeterminate   Kind = "indeterminate"
	KindUnknown         Kind = "unknown"
)

// Transient reports whether retrying the same call may succeed
func (k Kind) Transient() bool {
	return k == KindUnavailable || k == KindTimeout
}

var (
	// ErrBusy is returned when the same action on the same record is already in flight
	ErrBusy = errors.New("action already in progress")
	// ErrNotSettled is returned when a scoped read is attempted before the
	// authorization context has settled
	ErrNotSettled = errors.New("authorization context not settled")
	// ErrIndeterminate is returned when a retried action conflicts after a
	// transient failure, so the first attempt may have been applied
	ErrIndeterminate = errors.New("outcome unknown")
)

// Result is the outcome of one controller action
type Result struct {
	Kind Kind
	Err  error
}

// Succeeded returns true for an OK result
func (r Result) Succeeded() bool {
	return r.Kind == KindOK
}

func ok() Result {
	return Result{Kind: KindOK}
}

func failed(err error) Result {
	return Result{Kind: Classify(err), Err: err}
}

// Classify maps an error to its Kind
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrNotSettled):
		return KindNotReady
	case errors.Is(err, ErrIndeterminate):
		return KindIndeterminate
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, entity.ErrValidation):
		return KindValidation
	case errors.Is(err, entity.ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, entity.ErrForbidden):
		return KindForbidden
	case errors.Is(err, entity.ErrNotFound):
		return KindNotFound
	case errors.Is(err, entity.ErrConflict):
		return KindConflict
	case errors.Is(err, port.ErrSchema):
		return KindSchema
	case errors.Is(err, port.ErrUnavailable):
		return KindUnavailable
	default:
		return KindUnknown
	}
}
