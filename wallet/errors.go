package wallet

import (
	"errors"

	"github.com/astrachat/starwallet/api/ledger"
)

// ErrPurchasesUnsupported terminates a payment that needs a top-up on an
// account that may not buy Stars (store or regional restriction).
var ErrPurchasesUnsupported = errors.New("purchases are not supported for this account")

// remoteCode extracts the backend error code, or "" for plain network errors.
func remoteCode(err error) string {
	var remote *ledger.RemoteError
	if errors.As(err, &remote) {
		return remote.Code
	}
	return ""
}
