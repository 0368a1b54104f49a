package escrow

import errs "marketescrow/core/errors"

const moduleName = "escrow"

var (
	ErrInvalidQuantity       = errs.New(moduleName, 6000, errs.KindValidation, "quantity must be greater than zero")
	ErrCalculation           = errs.New(moduleName, 6001, errs.KindValidation, "price times quantity overflows")
	ErrInvalidEscrowState    = errs.New(moduleName, 6002, errs.KindState, "invalid escrow state for operation")
	ErrUnauthorizedBuyer     = errs.New(moduleName, 6004, errs.KindAuthorization, "caller is not the buyer")
	ErrUnauthorizedSeller    = errs.New(moduleName, 6005, errs.KindAuthorization, "caller is not the seller")
	ErrUnauthorizedAuthority = errs.New(moduleName, 6006, errs.KindAuthorization, "caller is not the marketplace authority")
	ErrUnauthorized          = errs.New(moduleName, 6007, errs.KindAuthorization, "caller is neither buyer nor seller")
	ErrTrackingIDTooLong     = errs.New(moduleName, 6008, errs.KindValidation, "tracking id exceeds 50 bytes")
	ErrDisputeReasonTooLong  = errs.New(moduleName, 6009, errs.KindValidation, "dispute reason exceeds 200 bytes")
	ErrInvalidEscrowAccount  = errs.New(moduleName, 6010, errs.KindValidation, "escrow, product or marketplace mismatch")
	ErrEscrowNotFound        = errs.New(moduleName, 6011, errs.KindNotFound, "escrow not found")
	ErrEscrowExists          = errs.New(moduleName, 6012, errs.KindState, "escrow already exists for marketplace, buyer and product")
	ErrCustodyNotEmpty       = errs.New(moduleName, 6023, errs.KindState, "custody address already holds funds")
	ErrCustodyAccount        = errs.New(moduleName, 6024, errs.KindValidation, "address is an escrow custody account")
)
