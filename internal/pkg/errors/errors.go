package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSignatureInvalid means a webhook body failed HMAC verification.
	// The delivery is rejected before any other processing.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrPayloadMalformed means a provider payload is missing a required
	// discriminator (payload type, external user id, or slot date). The
	// whole delivery aborts with no partial writes.
	ErrPayloadMalformed = errors.New("payload malformed")
	// ErrUnknownUser means no device link exists for the external user id.
	ErrUnknownUser = errors.New("unknown user")
)
