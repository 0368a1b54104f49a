package marketplace

import errs "marketescrow/core/errors"

const moduleName = "marketplace"

var (
	ErrFeesTooHigh           = errs.New(moduleName, 6100, errs.KindValidation, "marketplace fee exceeds 1000 basis points")
	ErrInvalidPrice          = errs.New(moduleName, 6101, errs.KindValidation, "price must be greater than zero")
	ErrInvalidQuantity       = errs.New(moduleName, 6102, errs.KindValidation, "quantity must be greater than zero")
	ErrTitleTooLong          = errs.New(moduleName, 6103, errs.KindValidation, "title exceeds 50 bytes")
	ErrDescriptionTooLong    = errs.New(moduleName, 6104, errs.KindValidation, "description exceeds 1000 bytes")
	ErrMetadataURITooLong    = errs.New(moduleName, 6105, errs.KindValidation, "metadata uri exceeds 200 bytes")
	ErrCategoryTooLong       = errs.New(moduleName, 6106, errs.KindValidation, "category exceeds 20 bytes")
	ErrNotProductOwner       = errs.New(moduleName, 6107, errs.KindAuthorization, "caller is not the product seller")
	ErrProductNotActive      = errs.New(moduleName, 6108, errs.KindState, "product is not active")
	ErrInsufficientInventory = errs.New(moduleName, 6109, errs.KindResource, "insufficient inventory")
	ErrMarketplaceNotFound   = errs.New(moduleName, 6110, errs.KindNotFound, "marketplace not found")
	ErrProductNotFound       = errs.New(moduleName, 6111, errs.KindNotFound, "product not found")
	ErrMarketplaceExists     = errs.New(moduleName, 6112, errs.KindState, "marketplace already initialized")
	ErrMarketplacePaused     = errs.New(moduleName, 6113, errs.KindState, "marketplace is paused")
	ErrNotAuthority          = errs.New(moduleName, 6114, errs.KindAuthorization, "caller is not the marketplace authority")
	ErrInvalidStatus         = errs.New(moduleName, 6115, errs.KindValidation, "invalid product status")
)
