//go:build !cgo

package certstore

import (
	"errors"

	"github.com/lb-conn/nfse-dps/domain/credential"
)

func openToken(TokenConfig, []byte) (*credential.Identity, error) {
	return nil, errors.New("pkcs11 signing is unavailable in this build (cgo disabled)")
}
