package certstore

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/errs"
)

// TokenConfig locates an A3 identity on a smart card or HSM.
type TokenConfig struct {
	Module string
	Slot   uint
	PIN    string
}

// TokenStore resolves identities by the hex CKA_ID shared by the key and
// certificate objects on the token.
type TokenStore struct {
	cfg TokenConfig
	log *slog.Logger
}

func NewTokenStore(cfg TokenConfig, log *slog.Logger) *TokenStore {
	if log == nil {
		log = slog.Default()
	}
	return &TokenStore{cfg: cfg, log: log}
}

func (s *TokenStore) Identity(ctx context.Context, id string) (*credential.Identity, error) {
	ckaID, err := hex.DecodeString(id)
	if err != nil || len(ckaID) == 0 {
		return nil, &errs.Error{Class: errs.ErrConfig, Op: "token identity", Field: "id", Expected: "hex CKA_ID", Actual: id}
	}
	identity, err := openToken(s.cfg, ckaID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "token identity "+id, err)
	}
	s.log.Info("signing identity loaded", "source", "pkcs11", "slot", s.cfg.Slot,
		"subject", identity.Certificate.Subject.CommonName)
	return identity, nil
}

var _ ports.CertificateStore = (*TokenStore)(nil)
