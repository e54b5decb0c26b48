package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/order"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// Artifact is the result of one emission attempt.
type Artifact struct {
	AttemptID string        `json:"attempt_id"`
	DPSID     string        `json:"dps_id"`
	Series    int           `json:"series"`
	Sequence  int64         `json:"sequence"`
	Document  *dps.Document `json:"-"`
	XML       []byte        `json:"-"`
	Signed    []byte        `json:"-"`
	Payload   string        `json:"payload"`
	Report    report.Report `json:"report"`
}

// Emit runs the whole pipeline for one order: reserve a number, map,
// serialize, rule pass, sign, schema pass, compress. A reserved number is
// never returned to the reservoir, so a failed attempt leaves a gap.
func (app *Application) Emit(ctx context.Context, snapshot order.Snapshot) (*Artifact, error) {
	required := []struct {
		name string
		dep  any
	}{
		{"mapper", app.deps.Mapper},
		{"serializer", app.deps.Serializer},
		{"rule validator", app.deps.Rules},
		{"signer", app.deps.Signer},
		{"schema validator", app.deps.Schema},
		{"codec", app.deps.Codec},
		{"sequence", app.deps.Sequence},
	}
	for _, r := range required {
		if r.dep == nil {
			return nil, notConfigured(r.name)
		}
	}

	started := time.Now()
	art := &Artifact{AttemptID: uuid.NewString(), Series: app.deps.Series}
	log := app.log.With(
		slog.String("attempt_id", art.AttemptID),
		slog.String("order_id", snapshot.ID),
		slog.Int("series", art.Series))

	seq, err := app.deps.Sequence.ReserveNext(ctx, art.Series)
	if err != nil {
		log.Error("sequence reservation failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("reserve sequence: %w", err)
	}
	art.Sequence = seq
	log = log.With(slog.Int64("sequence", seq))

	doc, err := app.deps.Mapper.Build(ctx, snapshot, seq)
	if err != nil {
		log.Warn("order rejected", slog.String("stage", "mapper"), slog.String("error", err.Error()))
		return nil, err
	}
	art.Document = doc
	art.DPSID = doc.ID.String()
	log = log.With(slog.String("dps_id", art.DPSID))

	if art.XML, err = app.deps.Serializer.Serialize(doc); err != nil {
		log.Error("serialization failed", slog.String("error", err.Error()))
		return nil, err
	}

	pre := app.deps.Rules.Validate(doc)
	if !pre.Valid {
		log.Warn("document rejected", slog.String("stage", "rtc"), slog.Int("errors", len(pre.Errors)))
		return nil, &ValidationFailedError{Stage: "rtc", Report: pre}
	}

	if art.Signed, err = app.deps.Signer.Sign(art.XML); err != nil {
		log.Error("signing failed", slog.String("error", err.Error()))
		return nil, err
	}

	post, err := app.deps.Schema.Validate(art.Signed)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if !post.Valid {
		log.Warn("document rejected", slog.String("stage", "xsd"), slog.Int("errors", len(post.Errors)))
		return nil, &ValidationFailedError{Stage: "xsd", Report: post}
	}
	art.Report = report.Merge(pre, post)

	if art.Payload, err = app.deps.Codec.Compress(art.Signed); err != nil {
		log.Error("compression failed", slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("dps emitted",
		slog.Int("warnings", len(art.Report.Warnings)),
		slog.Int("payload_bytes", len(art.Payload)),
		slog.Duration("elapsed", time.Since(started)))
	return art, nil
}
