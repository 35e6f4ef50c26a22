// Package importer turns a vCard payload into contact creates.
//
// Cards are parsed and deduplicated in input order, then submitted with
// bounded concurrency. A bad card never aborts the batch: every block ends
// as imported, skipped or failed, and the report is folded from those
// outcomes in input order so it does not depend on scheduling.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/rolo/internal/domain"
)

// DefaultConcurrency is the number of cards submitted at once
const DefaultConcurrency = 4

// Pipeline imports cards for one user
type Pipeline struct {
	creator     domain.ContactCreator
	logger      *slog.Logger
	concurrency int
}

// New creates a pipeline. A concurrency below 1 uses DefaultConcurrency.
func New(creator domain.ContactCreator, concurrency int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{creator: creator, logger: logger, concurrency: concurrency}
}

// outcome is the result of one card block
type outcome struct {
	name    string
	err     error // nil when created
	created *domain.ContactDetail
}

// Import parses cards from r and creates every new contact for userID.
// existing is the baseline used for deduplication. Only a failure to read
// r is returned as an error.
func (p *Pipeline) Import(ctx context.Context, r io.Reader, userID string, existing []domain.ContactDetail) (domain.ImportReport, error) {
	blocks, err := splitBlocks(r)
	if err != nil {
		return domain.ImportReport{Failures: []string{}}, err
	}

	outcomes := make([]outcome, len(blocks))
	seen := newKeySet(existing)

	type job struct {
		index int
		rec   domain.ImportRecord
	}
	var jobs []job

	for i, b := range blocks {
		rec, err := parseBlock(b)
		if err != nil {
			p.logger.Debug("skipping card", "index", i, "error", err)
			outcomes[i] = outcome{err: err}
			continue
		}
		if seen.contains(rec) {
			p.logger.Debug("skipping duplicate card", "index", i, "name", rec.Name)
			outcomes[i] = outcome{name: rec.Name, err: fmt.Errorf("%w: %s", domain.ErrImportDedupSkip, rec.Name)}
			continue
		}
		seen.add(rec)
		jobs = append(jobs, job{index: i, rec: rec})
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			// Each job owns its slot; failures are outcomes, not group errors
			outcomes[j.index] = p.submit(ctx, userID, j.rec)
			return nil
		})
	}
	g.Wait()

	report := fold(outcomes)
	p.logger.Info("import finished",
		"cards", len(blocks),
		"imported", report.Imported,
		"skipped", report.Skipped,
		"failed", len(report.Failures))
	return report, nil
}

// ImportFile runs Import over the file at path
func (p *Pipeline) ImportFile(ctx context.Context, path, userID string, existing []domain.ContactDetail) (domain.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ImportReport{Failures: []string{}}, fmt.Errorf("failed to open card file: %w", err)
	}
	defer f.Close()
	return p.Import(ctx, f, userID, existing)
}

// submit creates the contact, then its phones in card order. A phone
// failure leaves the contact in place.
func (p *Pipeline) submit(ctx context.Context, userID string, rec domain.ImportRecord) outcome {
	out := outcome{name: rec.Name}

	created, err := p.creator.CreateContact(ctx, domain.ContactCreate{
		Name:   rec.Name,
		Email:  domain.StringPtr(rec.Email),
		UserID: userID,
	})
	if err != nil {
		out.err = fmt.Errorf("%w: %w", domain.ErrImportCreate, err)
		p.logger.Warn("card create failed", "name", rec.Name, "kind", domain.Classify(err), "error", err)
		return out
	}

	detail := *created
	detail.Phones = make([]domain.PhoneNumber, 0, len(rec.Phones))
	out.created = &detail

	for _, ph := range rec.Phones {
		phone, err := p.creator.CreatePhone(ctx, domain.PhoneCreate{
			Number:     ph.Number,
			NumberType: domain.StringPtr(ph.NumberType),
			ContactID:  created.ID,
		})
		if err != nil {
			out.err = fmt.Errorf("%w: phone %s: %w", domain.ErrImportCreate, ph.Number, err)
			p.logger.Warn("card phone create failed", "name", rec.Name, "number", ph.Number, "error", err)
			return out
		}
		detail.Phones = append(detail.Phones, *phone)
	}
	return out
}

// fold reduces outcomes to a report in input order
func fold(outcomes []outcome) domain.ImportReport {
	report := domain.ImportReport{Failures: []string{}}
	for _, o := range outcomes {
		if o.created != nil {
			report.Created = append(report.Created, *o.created)
		}
		switch {
		case o.err == nil:
			report.Imported++
		case errors.Is(o.err, domain.ErrImportParseSkip), errors.Is(o.err, domain.ErrImportDedupSkip):
			report.Skipped++
		default:
			report.Failures = append(report.Failures, failureReason(o))
		}
	}
	return report
}

func failureReason(o outcome) string {
	msg := strings.TrimPrefix(o.err.Error(), domain.ErrImportCreate.Error()+": ")
	return fmt.Sprintf("%s: %s", o.name, msg)
}
