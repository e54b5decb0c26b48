package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/domain/order"
	"github.com/lb-conn/nfse-dps/infrastructure/codec"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App         AppSettings
	Log         LogSettings
	Provider    order.Provider
	DPS         DPSSettings
	Signature   SignatureSettings
	Certificate CertificateSettings
	Schema      SchemaSettings
	Sequence    SequenceSettings
	IBGE        IBGESettings
	Codec       CodecSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type LogSettings struct {
	Level string
}

// DPSSettings are the emission parameters that do not come from the order.
type DPSSettings struct {
	Environment        int
	Series             int
	AppVersion         string
	NationalTaxCode    string
	MunicipalTaxCode   string
	NBSCode            string
	ISSRate            string
	ISSRetention       int
	ServiceDescription string
	Namespace          string
	LayoutVersion      string
	TimeZone           string
}

type SignatureSettings struct {
	Digest           string // sha256 | sha1
	LegacySHA1       bool
	Canonicalization string // c14n | exc-c14n
}

type CertificateSettings struct {
	Source       string // pem | pkcs12 | pkcs11
	Dir          string
	ID           string
	Password     string
	PKCS11Module string
	PKCS11Slot   int
	PKCS11PIN    string
	TrustDir     string
}

type SchemaSettings struct {
	Dir  string
	Main string
}

type SequenceSettings struct {
	Driver   string // memory | postgres | sqlite
	DSN      string
	Path     string
	MaxConns int
	Migrate  bool
}

type IBGESettings struct {
	BaseURL       string
	Timeout       time.Duration
	CacheTTL      time.Duration
	RemoteEnabled bool
}

type CodecSettings struct {
	MaxBytes int
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists, then
// the optional provider profile named by NFSE_PROVIDER_PROFILE. Environment
// variables take precedence over both.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	provider, err := loadProfile(strings.TrimSpace(os.Getenv("NFSE_PROVIDER_PROFILE")))
	if err != nil {
		return AppConfig{}, errs.Wrap(errs.ErrConfig, "load provider profile", err)
	}

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "nfse-dps"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Provider: order.Provider{
			CNPJ:                  getEnv("NFSE_PROVIDER_CNPJ", provider.CNPJ),
			CPF:                   getEnv("NFSE_PROVIDER_CPF", provider.CPF),
			MunicipalRegistration: getEnv("NFSE_PROVIDER_IM", provider.MunicipalRegistration),
			Name:                  getEnv("NFSE_PROVIDER_NAME", provider.Name),
			Street:                getEnv("NFSE_PROVIDER_STREET", provider.Street),
			Number:                getEnv("NFSE_PROVIDER_NUMBER", provider.Number),
			Complement:            getEnv("NFSE_PROVIDER_COMPLEMENT", provider.Complement),
			District:              getEnv("NFSE_PROVIDER_DISTRICT", provider.District),
			MunicipalityCode:      getEnv("NFSE_PROVIDER_MUNICIPALITY_CODE", provider.MunicipalityCode),
			State:                 getEnv("NFSE_PROVIDER_STATE", provider.State),
			PostalCode:            getEnv("NFSE_PROVIDER_POSTAL_CODE", provider.PostalCode),
			Phone:                 getEnv("NFSE_PROVIDER_PHONE", provider.Phone),
			Email:                 getEnv("NFSE_PROVIDER_EMAIL", provider.Email),
			SimplesNacional:       getEnvAsInt("NFSE_PROVIDER_SIMPLES_NACIONAL", orInt(provider.SimplesNacional, 1)),
			SNRegime:              getEnvAsInt("NFSE_PROVIDER_SN_REGIME", provider.SNRegime),
			SpecialRegime:         getEnvAsInt("NFSE_PROVIDER_SPECIAL_REGIME", provider.SpecialRegime),
		},
		DPS: DPSSettings{
			Environment:        getEnvAsInt("NFSE_ENVIRONMENT", 2),
			Series:             getEnvAsInt("NFSE_SERIES", 1),
			AppVersion:         getEnv("NFSE_APP_VERSION", "nfse-dps/1.0.0"),
			NationalTaxCode:    strings.TrimSpace(os.Getenv("NFSE_NATIONAL_TAX_CODE")),
			MunicipalTaxCode:   strings.TrimSpace(os.Getenv("NFSE_MUNICIPAL_TAX_CODE")),
			NBSCode:            strings.TrimSpace(os.Getenv("NFSE_NBS_CODE")),
			ISSRate:            getEnv("NFSE_ISS_RATE", "5.00"),
			ISSRetention:       getEnvAsInt("NFSE_ISS_RETENTION", 1),
			ServiceDescription: os.Getenv("NFSE_SERVICE_DESCRIPTION"),
			Namespace:          getEnv("NFSE_NAMESPACE", "http://www.sped.fazenda.gov.br/nfse"),
			LayoutVersion:      getEnv("NFSE_LAYOUT_VERSION", "1.00"),
			TimeZone:           getEnv("NFSE_TIMEZONE", "America/Sao_Paulo"),
		},
		Signature: SignatureSettings{
			Digest:           strings.ToLower(getEnv("NFSE_SIGNATURE_DIGEST", "sha256")),
			LegacySHA1:       getEnvAsBool("NFSE_SIGNATURE_LEGACY_SHA1", false),
			Canonicalization: strings.ToLower(getEnv("NFSE_SIGNATURE_C14N", "c14n")),
		},
		Certificate: CertificateSettings{
			Source:       strings.ToLower(getEnv("NFSE_CERT_SOURCE", "pkcs12")),
			Dir:          getEnv("NFSE_CERT_DIR", "certs"),
			ID:           strings.TrimSpace(os.Getenv("NFSE_CERT_ID")),
			Password:     os.Getenv("NFSE_CERT_PASSWORD"),
			PKCS11Module: strings.TrimSpace(os.Getenv("NFSE_PKCS11_MODULE")),
			PKCS11Slot:   getEnvAsInt("NFSE_PKCS11_SLOT", 0),
			PKCS11PIN:    os.Getenv("NFSE_PKCS11_PIN"),
			TrustDir:     strings.TrimSpace(os.Getenv("NFSE_TRUST_DIR")),
		},
		Schema: SchemaSettings{
			Dir:  strings.TrimSpace(os.Getenv("NFSE_SCHEMA_DIR")),
			Main: getEnv("NFSE_SCHEMA_MAIN", "DPS_v1.00.xsd"),
		},
		Sequence: SequenceSettings{
			Driver:   strings.ToLower(getEnv("NFSE_SEQUENCE_DRIVER", "sqlite")),
			DSN:      strings.TrimSpace(os.Getenv("NFSE_DATABASE_URL")),
			Path:     getEnv("NFSE_SEQUENCE_PATH", "data/sequence.db"),
			MaxConns: getEnvAsInt("NFSE_DATABASE_MAX_CONNS", 4),
			Migrate:  getEnvAsBool("NFSE_DATABASE_MIGRATE", true),
		},
		IBGE: IBGESettings{
			BaseURL:       strings.TrimSpace(os.Getenv("NFSE_IBGE_BASE_URL")),
			Timeout:       getEnvAsDuration("NFSE_IBGE_TIMEOUT", 10*time.Second),
			CacheTTL:      getEnvAsDuration("NFSE_IBGE_CACHE_TTL", 24*time.Hour),
			RemoteEnabled: getEnvAsBool("NFSE_IBGE_REMOTE", true),
		},
		Codec: CodecSettings{
			MaxBytes: getEnvAsInt("NFSE_CODEC_MAX_BYTES", codec.DefaultMaxSize),
		},
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be corrected by defaults.
func (c AppConfig) Validate() error {
	if c.DPS.Environment != 1 && c.DPS.Environment != 2 {
		return invalid("NFSE_ENVIRONMENT must be 1 (production) or 2 (staging)")
	}
	if c.DPS.Series < 0 || c.DPS.Series > 99999 {
		return invalid("NFSE_SERIES must be between 0 and 99999")
	}

	switch c.Signature.Digest {
	case "sha256":
	case "sha1":
		if !c.Signature.LegacySHA1 {
			return invalid("NFSE_SIGNATURE_DIGEST=sha1 requires NFSE_SIGNATURE_LEGACY_SHA1=true")
		}
	default:
		return invalid("NFSE_SIGNATURE_DIGEST must be sha256 or sha1")
	}
	if c.Signature.Canonicalization != "c14n" && c.Signature.Canonicalization != "exc-c14n" {
		return invalid("NFSE_SIGNATURE_C14N must be c14n or exc-c14n")
	}

	switch c.Certificate.Source {
	case "pem", "pkcs12":
	case "pkcs11":
		if c.Certificate.PKCS11Module == "" {
			return invalid("NFSE_PKCS11_MODULE is required when NFSE_CERT_SOURCE=pkcs11")
		}
	default:
		return invalid("NFSE_CERT_SOURCE must be pem, pkcs12 or pkcs11")
	}

	switch c.Sequence.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Sequence.DSN == "" {
			return invalid("NFSE_DATABASE_URL is required when NFSE_SEQUENCE_DRIVER=postgres")
		}
	default:
		return invalid("NFSE_SEQUENCE_DRIVER must be memory, postgres or sqlite")
	}

	if c.Codec.MaxBytes <= 0 || c.Codec.MaxBytes > codec.DefaultMaxSize {
		return invalid(fmt.Sprintf("NFSE_CODEC_MAX_BYTES must be between 1 and %d", codec.DefaultMaxSize))
	}
	return nil
}

// Location returns the emission time zone. Systems without tzdata fall back
// to the fixed Brasília offset.
func (d DPSSettings) Location() *time.Location {
	if loc, err := time.LoadLocation(d.TimeZone); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*60*60)
}

// Settings converts the DPS group to the mapper input.
func (d DPSSettings) Settings() order.Settings {
	return order.Settings{
		Environment:        d.Environment,
		Series:             d.Series,
		AppVersion:         d.AppVersion,
		NationalTaxCode:    d.NationalTaxCode,
		MunicipalTaxCode:   d.MunicipalTaxCode,
		NBSCode:            d.NBSCode,
		ISSRate:            d.ISSRate,
		ISSRetention:       d.ISSRetention,
		ServiceDescription: d.ServiceDescription,
		Location:           d.Location(),
	}
}

func invalid(msg string) error {
	return errs.Wrap(errs.ErrConfig, "invalid config", fmt.Errorf("%s", msg))
}

// loadProfile reads the "provider" key of a YAML profile. An empty path
// yields an empty profile.
func loadProfile(path string) (order.Provider, error) {
	var p order.Provider
	if path == "" {
		return p, nil
	}
	if _, err := os.Stat(path); err != nil {
		return p, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return p, err
	}
	if err := v.UnmarshalKey("provider", &p); err != nil {
		return p, err
	}
	return p, nil
}

func orInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
