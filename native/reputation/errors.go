package reputation

import errs "marketescrow/core/errors"

const moduleName = "reputation"

var (
	ErrInvalidRating  = errs.New(moduleName, 6200, errs.KindValidation, "rating must be between 1 and 5")
	ErrCommentTooLong = errs.New(moduleName, 6201, errs.KindValidation, "comment exceeds 500 bytes")
	ErrUserNotFound   = errs.New(moduleName, 6202, errs.KindNotFound, "user reputation not initialized")
	ErrUserExists     = errs.New(moduleName, 6203, errs.KindState, "user reputation already initialized")
	ErrUnauthorized   = errs.New(moduleName, 6204, errs.KindAuthorization, "caller is not the marketplace authority")
	ErrSelfReview     = errs.New(moduleName, 6205, errs.KindValidation, "users cannot review themselves")
)
