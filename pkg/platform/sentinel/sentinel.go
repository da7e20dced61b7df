package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// wrap these so transports can map them onto status codes without knowing
// which component raised them:
//   - ErrUnavailable: a backend cannot be reached or is not configured
//   - ErrInvalidState: a component is in the wrong lifecycle state for the call
var (
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
