package wire

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
)

// Kind names one branch of the error taxonomy as seen by clients.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindPolicy      Kind = "policy"
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindInternal    Kind = "internal"
)

func Classify(err error) Kind {
	switch {
	case fault.IsValidation(err):
		return KindValidation
	case fault.IsNotFound(err):
		return KindNotFound
	case fault.IsPolicy(err):
		return KindPolicy
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case fault.IsPersistence(err):
		return KindUnavailable
	}
	return KindInternal
}

// Error renders err for a client.  Internal errors carry a generic message
// so storage details do not leak.
func Error(err error) types.ErrorBody {
	k := Classify(err)
	if k == KindInternal {
		return types.ErrorBody{Error: string(k), Message: "unexpected server error"}
	}
	return types.ErrorBody{Error: string(k), Message: err.Error()}
}
