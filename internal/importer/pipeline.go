package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/worshipplan/server/internal/domain"
)

// DefaultEnrichTimeout bounds a single external metadata lookup.
const DefaultEnrichTimeout = 10 * time.Second

// Config assembles a Pipeline. Repo is required; everything else has a
// working zero value (no enrichment, no PDF support, default logger).
type Config struct {
	Repo          Repository
	Enricher      Enricher
	PDF           PageExtractor
	Logger        *slog.Logger
	EnrichTimeout time.Duration
}

// Pipeline imports batches of service-planning export files for a tenant.
// A Pipeline is safe to reuse across batches; identifier allocation is
// serialized internally.
type Pipeline struct {
	repo          Repository
	enricher      Enricher
	pdf           PageExtractor
	ids           *Allocator
	log           *slog.Logger
	enrichTimeout time.Duration
}

// New validates the configuration and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("importer: repository is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.EnrichTimeout
	if timeout == 0 {
		timeout = DefaultEnrichTimeout
	}
	return &Pipeline{
		repo:          cfg.Repo,
		enricher:      cfg.Enricher,
		pdf:           cfg.PDF,
		ids:           NewAllocator(cfg.Repo),
		log:           log,
		enrichTimeout: timeout,
	}, nil
}

// Run imports a batch of files for one tenant. Files are processed
// strictly sequentially so identifier allocation stays monotonic. The
// returned error covers only failures that make the whole run impossible;
// per-row, per-file, and per-service failures land in the result's Report.
func (p *Pipeline) Run(ctx context.Context, tenant domain.Tenant, files []BatchFile) (*BatchResult, error) {
	batch := &BatchResult{
		RunID:  uuid.New().String(),
		Report: &Report{},
	}
	log := p.log.With("run_id", batch.RunID, "tenant", string(tenant))

	roster, err := p.repo.ListRoster(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	matcher := NewMatcher(roster)

	res, err := newResolver(ctx, tenant, p)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			// A caller-level timeout stops submitting further files; work
			// already committed stays committed.
			log.Warn("batch stopped early", "file", file.Name, "error", err)
			break
		}

		records := p.parseFile(ctx, file, batch.Report)
		log.Info("parsed file", "file", file.Name, "services", len(records))

		for _, raw := range records {
			rec, errs := Normalize(raw)
			for _, e := range errs {
				batch.Report.AddError(e)
			}
			if rec.Date.IsZero() {
				batch.Results = append(batch.Results, ImportResult{
					File:    rec.File,
					Name:    rec.Name,
					Outcome: ServiceSkipped,
				})
				continue
			}

			if err := p.matchLeaders(ctx, tenant, &rec, matcher, batch.Report); err != nil {
				batch.Results = append(batch.Results, ImportResult{
					File:    rec.File,
					Date:    rec.Date,
					Name:    rec.Name,
					Outcome: ServiceSkipped,
				})
				continue
			}
			batch.Results = append(batch.Results, p.commitService(ctx, tenant, rec, res, batch))
		}
	}

	if n := batch.Report.Len(); n > 0 {
		log.Warn("batch finished with errors",
			"services_created", batch.ServicesCreated,
			"errors", n,
		)
	} else {
		log.Info("batch finished",
			"services_created", batch.ServicesCreated,
			"songs_created", batch.SongsCreated,
			"songs_reused", batch.SongsReused,
		)
	}
	return batch, nil
}

// parseFile dispatches a file to its source adapter by extension. An
// unsupported or unreadable file is reported and skipped whole.
func (p *Pipeline) parseFile(ctx context.Context, file BatchFile, report *Report) []RawServiceRecord {
	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".csv":
		return parseCSV(file.Name, file.Data, report)
	case ".pdf":
		if p.pdf == nil {
			report.Add(KindFileFormat, file.Name, 0, "PDF support is not configured")
			return nil
		}
		ext, err := p.pdf.Extract(ctx, file.Data)
		if err != nil {
			report.Add(KindFileFormat, file.Name, 0, "cannot extract PDF content: %v", err)
			return nil
		}
		if len(ext.Tables) == 0 && strings.TrimSpace(ext.Text) == "" {
			report.Add(KindFileFormat, file.Name, 0, "no extractable text; the PDF may be image-based or empty")
			return nil
		}
		return []RawServiceRecord{parsePDF(file.Name, ext)}
	default:
		report.Add(KindFileFormat, file.Name, 0, "unsupported file type %q", filepath.Ext(file.Name))
		return nil
	}
}

// matchLeaders fills MatchedPersonIDs on every song entry. Free-text
// leader candidates go through the roster matcher; an explicit lead person
// identifier is looked up directly and silently dropped when unknown. A
// storage failure is reported and returned so the caller skips the
// service, the same way a storage failure inside the commit path ends
// that service's work.
func (p *Pipeline) matchLeaders(ctx context.Context, tenant domain.Tenant, rec *NormalizedServiceRecord, matcher *Matcher, report *Report) error {
	for i := range rec.Songs {
		entry := &rec.Songs[i]

		if entry.LeadPersonID != "" {
			person, err := p.repo.FindPersonByID(ctx, tenant, entry.LeadPersonID)
			if err != nil {
				report.Add(KindStorage, rec.File, entry.Line, "find person %s: %v", entry.LeadPersonID, err)
				return err
			}
			if person != nil {
				entry.MatchedPersonIDs = append(entry.MatchedPersonIDs, person.PersonID)
			}
			continue
		}

		entry.MatchedPersonIDs = matcher.Match(entry.LeaderCandidates)
	}
	return nil
}
