package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldps"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldsig"
	"github.com/lb-conn/nfse-dps/testutil"
)

func signedDPS(t *testing.T) []byte {
	t.Helper()
	data, err := xmldps.NewSerializer("", "").Serialize(testutil.SampleDocument())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	s, err := xmldsig.NewSigner(testutil.NewIdentity(t), nil, xmldsig.Options{}, nil)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signed, err := s.Sign(data)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestCodec_RoundTripKeepsSignature(t *testing.T) {
	c := New(0, nil)
	signed := signedDPS(t)

	encoded, err := c.Compress(signed)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if strings.ContainsAny(encoded, "\r\n") {
		t.Error("base64 output must be a single line")
	}
	decoded, err := c.Decompress(encoded)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decoded, signed) {
		t.Fatalf("round trip changed the document:\n%s\n%s", signed, decoded)
	}
	if err := xmldsig.NewVerifier(nil, xmldsig.VerifierOptions{}, nil).Verify(decoded); err != nil {
		t.Fatalf("signature must survive the round trip: %v", err)
	}
}

func TestCodec_CleanRemovesInterTagNoise(t *testing.T) {
	in := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!-- gerado -->\n<DPS>\n  <infDPS Id=\"x\">\n    <xDescServ>linha 1\nlinha  2</xDescServ>\n    <!-- nota -->\n  </infDPS>\n</DPS>\n"
	want := "<?xml version=\"1.0\" encoding=\"UTF-8\"?><DPS><infDPS Id=\"x\"><xDescServ>linha 1\nlinha  2</xDescServ></infDPS></DPS>"

	c := New(0, nil)
	if got := string(c.Clean([]byte(in))); got != want {
		t.Errorf("unexpected cleanup:\n%q\nwant\n%q", got, want)
	}

	encoded, err := c.Compress([]byte(in))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	out, err := c.Decompress(encoded)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(out) != want {
		t.Errorf("expected cleaned document after round trip, got %q", out)
	}
}

func TestCodec_CleanFallsBackOnInvalidXML(t *testing.T) {
	in := []byte("<DPS><unclosed></DPS>")
	if got := New(0, nil).Clean(in); !bytes.Equal(got, in) {
		t.Errorf("expected raw input, got %q", got)
	}
}

func TestCompress_InputOverCeiling(t *testing.T) {
	in := []byte("<a>" + strings.Repeat("x", DefaultMaxSize) + "</a>")
	_, err := New(0, nil).Compress(in)
	if !errors.Is(err, errs.ErrSizeLimit) || !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

// Conteúdo de alta entropia abaixo do teto que, em Base64, o ultrapassa.
func TestCompress_EncodedOverCeiling(t *testing.T) {
	const alphabet = "!#$%()*+,-./0123456789:;=?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[]^_`abcdefghijklmnopqrstuvwxyz{|}~"
	rng := rand.New(rand.NewSource(42))
	var b strings.Builder
	b.WriteString("<DPS><infDPS><xDescServ>")
	for i := 0; i < 1_020_000; i++ {
		b.WriteByte(alphabet[rng.Intn(len(alphabet))])
	}
	b.WriteString("</xDescServ></infDPS></DPS>")
	if b.Len() > DefaultMaxSize {
		t.Fatalf("fixture must stay under the ceiling, got %d", b.Len())
	}

	_, err := New(0, nil).Compress([]byte(b.String()))
	var e *errs.Error
	if !errors.As(err, &e) || e.Class != errs.ErrSizeLimit || e.Field != "base64" {
		t.Fatalf("expected base64 size limit error, got %v", err)
	}
}

func TestCompress_CustomCeiling(t *testing.T) {
	c := New(64, nil)
	if c.MaxSize() != 64 {
		t.Fatalf("expected ceiling 64, got %d", c.MaxSize())
	}
	if _, err := c.Compress(signedDPS(t)); !errors.Is(err, errs.ErrSizeLimit) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func gzipBase64(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecompress_Rejects(t *testing.T) {
	bomb := "<a>" + strings.Repeat("0", 2*DefaultMaxSize) + "</a>"
	tests := []struct {
		name  string
		in    string
		class error
	}{
		{"invalid base64", "not base64!", errs.ErrInput},
		{"not gzip", base64.StdEncoding.EncodeToString([]byte("<DPS/>")), errs.ErrInput},
		{"not xml", gzipBase64(t, []byte("plain text")), errs.ErrInput},
		{"truncated xml", gzipBase64(t, []byte("<DPS><infDPS>")), errs.ErrInput},
		{"decompression bomb", gzipBase64(t, []byte(bomb)), errs.ErrSizeLimit},
		{"encoded over ceiling", strings.Repeat("A", DefaultMaxSize+4), errs.ErrSizeLimit},
	}
	c := New(0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decompress(tt.in)
			if !errors.Is(err, tt.class) {
				t.Fatalf("expected %v, got %v", tt.class, err)
			}
		})
	}
}

func TestNew_CeilingCannotBeRaised(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultMaxSize},
		{-1, DefaultMaxSize},
		{DefaultMaxSize + 1, DefaultMaxSize},
		{4 << 20, DefaultMaxSize},
		{512, 512},
	}
	for _, tt := range tests {
		if got := New(tt.in, nil).MaxSize(); got != tt.want {
			t.Errorf("New(%d).MaxSize() = %d, want %d", tt.in, got, tt.want)
		}
	}
}
