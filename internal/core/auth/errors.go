package auth

import "errors"

// ErrInvalidAuthorization is returned for authorization metadata that is not
// of the form "Bearer <token>". Absent metadata is not an error: requests fall
// back to the configured token and fail only at submission time.
var ErrInvalidAuthorization = errors.New("authorization metadata must be \"Bearer <token>\"")
