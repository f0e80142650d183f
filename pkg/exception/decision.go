package exception

import "errors"

// Persona / routing errors
var (
	ErrPersonaNotFinite    = errors.New("persona produced non-finite output")
	ErrPersonaShortHistory = errors.New("persona history too short")
	ErrPersonaUnknown      = errors.New("persona not registered")
	ErrNoActiveLegs        = errors.New("router has no active legs")
)

// Authority errors
var (
	ErrAlphaRequired     = errors.New("alpha actor required")
	ErrSignatureRequired = errors.New("signature required")
	ErrSignatureIdentity = errors.New("signature identity missing")
	ErrSignatureInvalid  = errors.New("signature invalid")
	ErrPolicyDenied      = errors.New("policy denied")
	ErrChainBroken       = errors.New("decision chain broken")
)
