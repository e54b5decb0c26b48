// Package setup monta a aplicação a partir da configuração carregada.
package setup

import (
	"context"
	"crypto"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/application/usecases"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/infrastructure/certstore"
	"github.com/lb-conn/nfse-dps/infrastructure/codec"
	"github.com/lb-conn/nfse-dps/infrastructure/config"
	"github.com/lb-conn/nfse-dps/infrastructure/ibge"
	"github.com/lb-conn/nfse-dps/infrastructure/mapper"
	"github.com/lb-conn/nfse-dps/infrastructure/rtc"
	"github.com/lb-conn/nfse-dps/infrastructure/sequence"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldps"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldsig"
	"github.com/lb-conn/nfse-dps/infrastructure/xsd"
)

// Options escolhe as partes opcionais da montagem.
type Options struct {
	// Emission abre o reservatório de numeração e monta o mapper. Comandos
	// que só verificam ou comprimem não precisam de banco nem de prestador.
	Emission bool
	// Sequence abre só o reservatório, para manutenção da numeração.
	Sequence bool
}

// Setup guarda a aplicação e os recursos que precisam ser liberados.
type Setup struct {
	App      *usecases.Application
	Config   config.AppConfig
	Log      *slog.Logger
	Identity *credential.Identity
	Sequence sequence.Reservoir

	closers []func()
}

// NewSetup cria a aplicação com o Signer carregado do repositório de certificados.
func NewSetup(ctx context.Context, cfg config.AppConfig, log *slog.Logger, opts Options) (_ *Setup, err error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Setup{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var trust *certstore.TrustPool
	if cfg.Certificate.TrustDir != "" {
		trust = certstore.NewTrustPool(log)
		if err := trust.LoadDir(cfg.Certificate.TrustDir); err != nil {
			return nil, errs.Wrap(errs.ErrConfig, "load trust pool", err)
		}
	}

	deps := usecases.Dependencies{
		Serializer: xmldps.NewSerializer(cfg.DPS.Namespace, cfg.DPS.LayoutVersion),
		Rules:      rtc.New(log),
		Codec:      codec.New(cfg.Codec.MaxBytes, log),
		Series:     cfg.DPS.Series,
	}
	verifierOpts := xmldsig.VerifierOptions{}
	if trust != nil {
		verifierOpts.Trust = trust
	}
	deps.Verifier = xmldsig.NewVerifier(nil, verifierOpts, log)

	if opts.Emission && cfg.Schema.Dir == "" {
		return nil, errs.Wrap(errs.ErrConfig, "setup", fmt.Errorf("%w: NFSE_SCHEMA_DIR is required for emission", xsd.ErrSchemaNotFound))
	}
	if cfg.Schema.Dir != "" {
		v, err := xsd.New(cfg.Schema.Dir, cfg.Schema.Main, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, v.Close)
		deps.Schema = v
	}

	if cfg.Certificate.ID != "" {
		store := NewCertificateStore(cfg.Certificate, log)
		if s.Identity, err = store.Identity(ctx, cfg.Certificate.ID); err != nil {
			return nil, err
		}
		signer, err := xmldsig.NewSigner(s.Identity, nil, SignerOptions(cfg.Signature), log)
		if err != nil {
			return nil, err
		}
		deps.Signer = signer
	}

	if opts.Emission || opts.Sequence {
		if s.Sequence, err = s.openSequence(ctx); err != nil {
			return nil, err
		}
		deps.Sequence = s.Sequence
	}
	if opts.Emission {
		m, err := mapper.New(cfg.Provider, cfg.DPS.Settings(), NewResolver(cfg.IBGE, log), log)
		if err != nil {
			return nil, err
		}
		deps.Mapper = m
	}

	s.App = usecases.NewApplication(deps, log)
	log.Info("application ready",
		slog.Bool("signer", deps.Signer != nil),
		slog.Bool("schema", deps.Schema != nil),
		slog.Bool("emission", opts.Emission))
	return s, nil
}

// Close libera banco e schema na ordem inversa da abertura.
func (s *Setup) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewCertificateStore escolhe o repositório pela origem configurada.
func NewCertificateStore(cfg config.CertificateSettings, log *slog.Logger) ports.CertificateStore {
	switch cfg.Source {
	case "pem":
		return certstore.NewPEMStore(cfg.Dir, log)
	case "pkcs11":
		return certstore.NewTokenStore(certstore.TokenConfig{
			Module: cfg.PKCS11Module,
			Slot:   uint(cfg.PKCS11Slot),
			PIN:    cfg.PKCS11PIN,
		}, log)
	default:
		return certstore.NewPKCS12Store(cfg.Dir, cfg.Password, log)
	}
}

// SignerOptions traduz os nomes curtos da configuração para URIs e hashes.
func SignerOptions(cfg config.SignatureSettings) xmldsig.Options {
	opts := xmldsig.Options{
		Canonicalization: xmldsig.C14N10,
		Hash:             crypto.SHA256,
		AllowSHA1:        cfg.LegacySHA1,
	}
	if cfg.Canonicalization == "exc-c14n" {
		opts.Canonicalization = xmldsig.C14N10Exclusive
	}
	if cfg.Digest == "sha1" {
		opts.Hash = crypto.SHA1
	}
	return opts
}

// NewResolver monta a cadeia tabela embutida, cache e API do IBGE.
func NewResolver(cfg config.IBGESettings, log *slog.Logger) ports.MunicipalityResolver {
	table, err := ibge.NewTable()
	if err != nil {
		// A tabela é embutida; falha aqui é defeito de build.
		panic(fmt.Sprintf("embedded municipality table: %v", err))
	}
	if !cfg.RemoteEnabled {
		return table
	}
	client := ibge.NewClient(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout}, log)
	return ibge.Chain{table, ibge.NewCache(client, cfg.CacheTTL)}
}

func (s *Setup) openSequence(ctx context.Context) (sequence.Reservoir, error) {
	cfg := s.Config.Sequence
	switch cfg.Driver {
	case "memory":
		s.Log.Warn("in-memory sequence reservoir: numbers are lost on restart")
		return sequence.NewMemory(), nil
	case "postgres":
		pool, err := sequence.NewPool(ctx, cfg.DSN, int32(cfg.MaxConns))
		if err != nil {
			return nil, errs.Wrap(errs.ErrConfig, "open sequence database", err)
		}
		s.closers = append(s.closers, pool.Close)
		pg := sequence.NewPostgres(pool, s.Log)
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return pg, nil
	default:
		db, err := sequence.NewSQLite(cfg.Path, s.Log)
		if err != nil {
			return nil, errs.Wrap(errs.ErrConfig, "open sequence database", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		return db, nil
	}
}
