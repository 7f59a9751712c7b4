package importer

import (
	"context"
	"time"

	"github.com/worshipplan/server/internal/domain"
)

// Repository is the persistence surface consumed by the pipeline.
// Every call is tenant-scoped. Find methods return (nil, nil) when the
// record does not exist; a non-nil error always means a storage failure.
type Repository interface {
	// ListRoster returns the tenant's people in roster order (by name).
	// The returned slice is a snapshot; the pipeline never mutates people.
	ListRoster(ctx context.Context, tenant domain.Tenant) ([]domain.Person, error)

	FindPersonByID(ctx context.Context, tenant domain.Tenant, personID string) (*domain.Person, error)

	// ListSongs returns all songs for building the batch song index.
	ListSongs(ctx context.Context, tenant domain.Tenant) ([]domain.Song, error)
	FindSongByID(ctx context.Context, tenant domain.Tenant, songID string) (*domain.Song, error)
	CreateSong(ctx context.Context, tenant domain.Tenant, song domain.Song) error

	// UpdateSongUsage applies one use of a song on the given date:
	// last_used becomes max(existing, date) and times_used increments.
	UpdateSongUsage(ctx context.Context, tenant domain.Tenant, songID string, date time.Time) error

	// SetSongLength backfills a song length that the library was missing.
	SetSongLength(ctx context.Context, tenant domain.Tenant, songID string, lengthSeconds int) error

	CreateService(ctx context.Context, tenant domain.Tenant, service domain.Service) error
	CreateServiceSong(ctx context.Context, tenant domain.Tenant, link domain.ServiceSong) error

	FindLeaderPreference(ctx context.Context, tenant domain.Tenant, personID, songID string) (*domain.LeaderPreference, error)
	CreateLeaderPreference(ctx context.Context, tenant domain.Tenant, pref domain.LeaderPreference) error
	SetLeaderPreferenceCanLead(ctx context.Context, tenant domain.Tenant, entryID string, canLead bool) error

	// MaxIdentifier returns the numerically largest suffix among existing
	// identifiers of the kind's prefix, or 0 when none exist. Used to seed
	// the Allocator once per (tenant, kind).
	MaxIdentifier(ctx context.Context, tenant domain.Tenant, kind domain.EntityKind) (int, error)
}

// Metadata is the result of an external song lookup. Zero-value fields
// mean the source had no data; absence is the only failure signal.
type Metadata struct {
	Key           string
	Tempo         string
	BPM           *int
	LengthSeconds *int
}

// Enricher looks up song metadata from an external source. Implementations
// must return within a bounded time and never fail: on any problem they
// return an empty Metadata.
type Enricher interface {
	Lookup(ctx context.Context, title, artist string) Metadata
}

// Extraction holds the raw content pulled out of a PDF document: zero or
// more table grids (tables of rows of cells) and the concatenated page text.
type Extraction struct {
	Tables [][][]string
	Text   string
}

// PageExtractor turns PDF bytes into table grids and page text.
type PageExtractor interface {
	Extract(ctx context.Context, data []byte) (Extraction, error)
}

// BatchFile is one input file of a batch.
type BatchFile struct {
	Name string
	Data []byte
}

// RawSongEntry is a song row as the source adapter saw it. All fields are
// unparsed source text; empty means the source did not supply the field.
type RawSongEntry struct {
	Line         int // source line number, 0 when the source has no lines
	OrderText    string
	SongID       string
	Title        string
	Artist       string
	DefaultKey   string
	KeyUsed      string
	LengthText   string
	LeaderText   string
	LeadPersonID string
}

// RawServiceRecord is one service as produced by a source adapter,
// immutable once produced.
type RawServiceRecord struct {
	File         string
	DateText     string
	NameText     string
	Songs        []RawSongEntry
	BandNotes    string
	ServiceNotes string
}

// NormalizedSongEntry is a song entry after cleaning and parsing.
type NormalizedSongEntry struct {
	Line             int
	Order            int
	SongID           string // explicit source identifier, may be empty
	Title            string
	Artist           string
	DefaultKey       string
	RequestedKey     string
	LengthSeconds    *int
	LeaderCandidates []string // ordered, first listed is primary
	MatchedPersonIDs []string // ordered, possibly empty
	LeadPersonID     string   // explicit source identifier, may be empty
}

// NormalizedServiceRecord is a service ready for entity resolution.
type NormalizedServiceRecord struct {
	File         string
	Date         time.Time
	Name         string
	Songs        []NormalizedSongEntry
	BandNotes    string
	ServiceNotes string
}

// ServiceOutcome is the per-service import result.
type ServiceOutcome string

const (
	ServiceCreated ServiceOutcome = "created"
	ServiceSkipped ServiceOutcome = "skipped"
)

// SongOutcome is the per-song import result within a service.
type SongOutcome string

const (
	SongCreated SongOutcome = "created"
	SongReused  SongOutcome = "reused"
	SongError   SongOutcome = "error"
)

// SongResult is the outcome for one song entry of a service.
type SongResult struct {
	Order   int
	Title   string
	SongID  string // empty when the song could not be resolved
	Outcome SongOutcome
	Reason  string // set when Outcome is SongError
}

// ImportResult is the outcome for one service of a batch.
type ImportResult struct {
	File    string
	PlanID  string // empty when the service was skipped
	Date    time.Time
	Name    string
	Outcome ServiceOutcome
	Songs   []SongResult
}

// BatchResult is the outcome of a whole pipeline run.
type BatchResult struct {
	RunID           string
	Results         []ImportResult
	ServicesCreated int
	SongsCreated    int
	SongsReused     int
	LinksCreated    int
	Report          *Report
}
