package ports

import (
	"context"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/order"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// Mapper builds a document from an order snapshot and a reserved sequence number.
type Mapper interface {
	Build(ctx context.Context, snapshot order.Snapshot, sequence int64) (*dps.Document, error)
}

type Serializer interface {
	Serialize(doc *dps.Document) ([]byte, error)
}

// RuleValidator is the structural/business-rule pass.
type RuleValidator interface {
	Validate(doc *dps.Document) report.Report
	ValidateXML(xmlData []byte) report.Report
}

// SchemaValidator is the XSD pass. An error means the validator itself could
// not run (missing schema, parser failure), not that the document is invalid.
type SchemaValidator interface {
	Validate(xmlData []byte) (report.Report, error)
}

type Codec interface {
	Compress(xmlData []byte) (string, error)
	Decompress(encoded string) ([]byte, error)
}
