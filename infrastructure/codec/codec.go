// Package codec prepares signed DPS documents for transport: XML cleanup,
// gzip at maximum compression and standard Base64, bounded by a size ceiling.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/infrastructure/xmltree"
)

// DefaultMaxSize is the transport ceiling applied to the raw XML and to the
// Base64 output.
const DefaultMaxSize = 1 << 20

// ErrPayloadTooLarge is the cause of every size-limit error raised here.
var ErrPayloadTooLarge = errors.New("payload too large")

// Codec compresses and decompresses DPS documents.
type Codec struct {
	maxSize int
	log     *slog.Logger
}

var _ ports.Codec = (*Codec)(nil)

// New returns a Codec. maxSize can only lower the ceiling; values outside
// 1..DefaultMaxSize use DefaultMaxSize.
func New(maxSize int, log *slog.Logger) *Codec {
	if maxSize <= 0 || maxSize > DefaultMaxSize {
		maxSize = DefaultMaxSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Codec{maxSize: maxSize, log: log}
}

// MaxSize returns the configured ceiling in bytes.
func (c *Codec) MaxSize() int { return c.maxSize }

// Compress cleans xmlData, gzips it and encodes it as Base64.
func (c *Codec) Compress(xmlData []byte) (string, error) {
	const op = "compress"
	if len(xmlData) > c.maxSize {
		return "", c.tooLarge(op, "xml", len(xmlData))
	}

	cleaned := c.Clean(xmlData)

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", errs.Wrap(errs.ErrSerialization, op, err)
	}
	if _, err := zw.Write(cleaned); err != nil {
		return "", errs.Wrap(errs.ErrSerialization, op, fmt.Errorf("gzip write: %w", err))
	}
	if err := zw.Close(); err != nil {
		return "", errs.Wrap(errs.ErrSerialization, op, fmt.Errorf("gzip close: %w", err))
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(encoded) > c.maxSize {
		return "", c.tooLarge(op, "base64", len(encoded))
	}

	c.log.Debug("document compressed",
		"xml_bytes", len(xmlData),
		"clean_bytes", len(cleaned),
		"gzip_bytes", buf.Len(),
		"base64_bytes", len(encoded))
	return encoded, nil
}

// Clean removes comments and whitespace-only text between tags. Content
// inside text nodes is never touched. Input that cannot be parsed is
// returned unchanged.
func (c *Codec) Clean(xmlData []byte) []byte {
	doc, err := xmltree.Parse(xmlData)
	if err != nil {
		c.log.Warn("xml cleanup skipped", "error", err)
		return xmlData
	}
	xmltree.Normalize(doc)
	out, err := xmltree.Write(doc)
	if err != nil {
		c.log.Warn("xml cleanup skipped", "error", err)
		return xmlData
	}
	return out
}

// Decompress reverses Compress and checks the result is well formed XML.
func (c *Codec) Decompress(encoded string) ([]byte, error) {
	const op = "decompress"
	if len(encoded) > c.maxSize {
		return nil, c.tooLarge(op, "base64", len(encoded))
	}

	raw, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "base64", Err: err}
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "gzip", Err: err}
	}
	defer zr.Close()

	// One byte past the ceiling is enough to detect decompression bombs.
	out, err := io.ReadAll(io.LimitReader(zr, int64(c.maxSize)+1))
	if err != nil {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "gzip", Err: err}
	}
	if len(out) > c.maxSize {
		return nil, c.tooLarge(op, "xml", len(out))
	}
	if err := xmltree.WellFormed(out); err != nil {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "xml", Err: err}
	}
	return out, nil
}

func (c *Codec) tooLarge(op, field string, size int) error {
	c.log.Warn("size ceiling exceeded", "op", op, "field", field, "bytes", size, "limit", c.maxSize)
	return &errs.Error{
		Class:    errs.ErrSizeLimit,
		Op:       op,
		Field:    field,
		Expected: fmt.Sprintf("at most %d bytes", c.maxSize),
		Actual:   fmt.Sprintf("%d bytes", size),
		Err:      ErrPayloadTooLarge,
	}
}
