//go:build cgo

package certstore

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/lb-conn/nfse-dps/domain/credential"
)

type digestInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	Digest    []byte
}

var (
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
)

// digestPrefix returns the DER DigestInfo header; CKM_RSA_PKCS signs the
// DigestInfo, not the bare hash.
func digestPrefix(hash crypto.Hash) ([]byte, error) {
	var oid asn1.ObjectIdentifier
	switch hash {
	case crypto.SHA256:
		oid = oidSHA256
	case crypto.SHA1:
		oid = oidSHA1
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %v", hash)
	}

	di := digestInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oid,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		},
		Digest: make([]byte, hash.Size()),
	}
	full, err := asn1.Marshal(di)
	if err != nil {
		return nil, err
	}
	return full[:len(full)-hash.Size()], nil
}

// TokenSigner signs with a private key that never leaves the token. Each call
// opens its own session; the module is shared and guarded by mu.
type TokenSigner struct {
	ctx       *pkcs11.Ctx
	slot      uint
	pin       string
	id        []byte
	publicKey crypto.PublicKey

	mu sync.Mutex
}

func (s *TokenSigner) Public() crypto.PublicKey {
	return s.publicKey
}

func (s *TokenSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if _, ok := s.publicKey.(*rsa.PublicKey); !ok {
		return nil, errors.New("token key is not RSA")
	}
	prefix, err := digestPrefix(opts.HashFunc())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.login()
	if err != nil {
		return nil, err
	}
	defer s.ctx.CloseSession(session)
	defer s.ctx.Logout(session)

	key, err := findObject(s.ctx, session, pkcs11.CKO_PRIVATE_KEY, s.id)
	if err != nil {
		return nil, err
	}
	mechanism := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
	if err := s.ctx.SignInit(session, mechanism, key); err != nil {
		return nil, fmt.Errorf("pkcs11 sign init: %w", err)
	}
	sig, err := s.ctx.Sign(session, append(prefix, digest...))
	if err != nil {
		return nil, fmt.Errorf("pkcs11 sign: %w", err)
	}
	return sig, nil
}

func (s *TokenSigner) login() (pkcs11.SessionHandle, error) {
	session, err := s.ctx.OpenSession(s.slot, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return 0, fmt.Errorf("pkcs11 open session on slot %d: %w", s.slot, err)
	}
	if err := s.ctx.Login(session, pkcs11.CKU_USER, s.pin); err != nil && !errors.Is(err, pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN)) {
		s.ctx.CloseSession(session)
		return 0, fmt.Errorf("pkcs11 login: %w", err)
	}
	return session, nil
}

func findObject(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, class uint, id []byte) (pkcs11.ObjectHandle, error) {
	if err := ctx.FindObjectsInit(session, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
		pkcs11.NewAttribute(pkcs11.CKA_ID, id),
	}); err != nil {
		return 0, fmt.Errorf("pkcs11 find: %w", err)
	}
	objs, _, err := ctx.FindObjects(session, 1)
	ctx.FindObjectsFinal(session)
	if err != nil {
		return 0, fmt.Errorf("pkcs11 find: %w", err)
	}
	if len(objs) == 0 {
		return 0, fmt.Errorf("object %x not found on token", id)
	}
	return objs[0], nil
}

var (
	modulesMu sync.Mutex
	modules   = map[string]*pkcs11.Ctx{}
)

// loadModule initializes each PKCS#11 library once per process.
func loadModule(path string) (*pkcs11.Ctx, error) {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	if ctx, ok := modules[path]; ok {
		return ctx, nil
	}
	ctx := pkcs11.New(path)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module %s", path)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("pkcs11 initialize: %w", err)
	}
	modules[path] = ctx
	return ctx, nil
}

func openToken(cfg TokenConfig, id []byte) (*credential.Identity, error) {
	if cfg.Module == "" {
		return nil, errors.New("pkcs11 module path is required")
	}
	ctx, err := loadModule(cfg.Module)
	if err != nil {
		return nil, err
	}
	signer := &TokenSigner{ctx: ctx, slot: cfg.Slot, pin: cfg.PIN, id: id}

	session, err := signer.login()
	if err != nil {
		return nil, err
	}
	defer ctx.CloseSession(session)
	defer ctx.Logout(session)

	obj, err := findObject(ctx, session, pkcs11.CKO_CERTIFICATE, id)
	if err != nil {
		return nil, err
	}
	attrs, err := ctx.GetAttributeValue(session, obj, []*pkcs11.Attribute{pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil)})
	if err != nil || len(attrs) == 0 {
		return nil, fmt.Errorf("pkcs11 read certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(attrs[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token certificate: %w", err)
	}

	signer.publicKey = cert.PublicKey
	identity := &credential.Identity{Key: signer, Certificate: cert}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return identity, nil
}
