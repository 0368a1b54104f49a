package escrow

import "marketescrow/core/types"

// Role predicates never look at status; callers check status separately.

// IsBuyer reports whether signer authorizes for the escrow's buyer. A nil
// escrow has no buyer.
func IsBuyer(signer types.Signer, e *Escrow) bool {
	return e != nil && signer.Authorizes(e.Buyer)
}

// IsSeller reports whether signer authorizes for the escrow's seller.
func IsSeller(signer types.Signer, e *Escrow) bool {
	return e != nil && signer.Authorizes(e.Seller)
}

// IsEitherParty reports whether signer is the buyer or the seller.
func IsEitherParty(signer types.Signer, e *Escrow) bool {
	return IsBuyer(signer, e) || IsSeller(signer, e)
}

// IsMarketplaceAuthority reports whether signer authorizes for the
// marketplace authority that arbitrates disputes.
func IsMarketplaceAuthority(signer types.Signer, m Marketplace) bool {
	return signer.Authorizes(m.Authority)
}
