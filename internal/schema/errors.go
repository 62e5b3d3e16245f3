package schema

import "errors"

// ErrUnknown indicates an invalid analysis kind was specified.
var ErrUnknown = errors.New("unknown analysis kind")
