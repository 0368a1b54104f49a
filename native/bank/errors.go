package bank

import errs "marketescrow/core/errors"

const moduleName = "bank"

var (
	ErrInsufficientFunds   = errs.New(moduleName, 6003, errs.KindResource, "insufficient funds")
	ErrHoldingNotFound     = errs.New(moduleName, 6013, errs.KindResource, "token holding not found")
	ErrUnsupportedCurrency = errs.New(moduleName, 6014, errs.KindValidation, "unsupported currency")
	ErrInvalidAuthority    = errs.New(moduleName, 6015, errs.KindAuthorization, "transfer authority does not cover source")
	ErrInvalidAmount       = errs.New(moduleName, 6017, errs.KindValidation, "transfer amount must be positive")
)
