package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/worshipplan/server/internal/domain"
	"github.com/worshipplan/server/internal/importer"
	"github.com/worshipplan/server/internal/memstore"
)

const testTenant = domain.Tenant("test")

// stubPDF hands back a fixed extraction regardless of input bytes.
type stubPDF struct {
	ext importer.Extraction
	err error
}

func (s stubPDF) Extract(context.Context, []byte) (importer.Extraction, error) {
	return s.ext, s.err
}

// stubEnricher returns fixed metadata and records the titles it was asked
// about.
type stubEnricher struct {
	meta   importer.Metadata
	titles []string
}

func (s *stubEnricher) Lookup(_ context.Context, title, _ string) importer.Metadata {
	s.titles = append(s.titles, title)
	return s.meta
}

func newTestStore() *memstore.Store {
	store := memstore.New()
	store.AddPerson(testTenant, domain.Person{PersonID: "P001", Name: "Bill Johnson", LeadVocal: true})
	store.AddPerson(testTenant, domain.Person{PersonID: "P002", Name: "Sarah Smith", LeadVocal: true})
	store.AddPerson(testTenant, domain.Person{PersonID: "P003", Name: "Mike Brown", HarmonyVocal: true})
	return store
}

func newTestPipeline(t *testing.T, store *memstore.Store, opts ...func(*importer.Config)) *importer.Pipeline {
	t.Helper()
	cfg := importer.Config{Repo: store}
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := importer.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func csvFile(name string, rows ...string) importer.BatchFile {
	head := "Service Date,Service Name,Song Order,Song ID,Song Title,Song Artist,Song Default Key,Key Used,Length,Lead Person ID,Band Notes,Service Notes"
	return importer.BatchFile{
		Name: name,
		Data: []byte(head + "\n" + strings.Join(rows, "\n") + "\n"),
	}
}

func TestPipeline_ImportCSVBatch(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("feb.csv",
			"2026-02-01,Sunday Morning,1,,Trust in God,Elevation Worship,D,D,5,P001,Slow intro,Communion",
			"2026-02-01,Sunday Morning,2,,Faithful Now,Vertical Worship,G,,4,P002,,",
			"2026-02-08,Sunday Evening,1,,Trust in God,Elevation Worship,D,E,5,P002,,",
		),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.Report.Len() != 0 {
		t.Fatalf("report = %v, want empty", batch.Report.Messages())
	}

	if batch.ServicesCreated != 2 || batch.SongsCreated != 2 || batch.SongsReused != 1 || batch.LinksCreated != 3 {
		t.Fatalf("counters = %+v", batch)
	}

	services := store.Services(testTenant)
	if len(services) != 2 || services[0].PlanID != "SV001" || services[1].PlanID != "SV002" {
		t.Fatalf("services = %+v, want SV001 and SV002", services)
	}
	if services[0].BandNotes != "Slow intro" || services[0].ServiceNotes != "Communion" {
		t.Errorf("service notes = %+v", services[0])
	}

	songs := store.Songs(testTenant)
	if len(songs) != 2 || songs[0].SongID != "S001" || songs[1].SongID != "S002" {
		t.Fatalf("songs = %+v, want S001 and S002", songs)
	}

	// Trust in God was used in both services.
	trust := songs[0]
	if trust.TimesUsed != 2 {
		t.Errorf("TimesUsed = %d, want 2", trust.TimesUsed)
	}
	wantLast := time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC)
	if trust.LastUsed == nil || !trust.LastUsed.Equal(wantLast) {
		t.Errorf("LastUsed = %v, want %v", trust.LastUsed, wantLast)
	}

	links := store.Links(testTenant)
	if len(links) != 3 {
		t.Fatalf("links = %d, want 3", len(links))
	}
	if links[0].KeyUsed != "D" || links[0].LeadPersonID != "P001" {
		t.Errorf("link[0] = %+v", links[0])
	}
	// No requested key falls back to the song's default.
	if links[1].KeyUsed != "G" {
		t.Errorf("link[1].KeyUsed = %q, want %q", links[1].KeyUsed, "G")
	}
	// The reuse in the second service carries its own requested key.
	if links[2].KeyUsed != "E" || links[2].SongID != "S001" {
		t.Errorf("link[2] = %+v", links[2])
	}

	prefs := store.Preferences(testTenant)
	if len(prefs) != 3 {
		t.Fatalf("preferences = %d, want 3", len(prefs))
	}
	if prefs[0].EntryID != "E001" || prefs[0].PersonID != "P001" || prefs[0].SongID != "S001" {
		t.Errorf("pref[0] = %+v", prefs[0])
	}
	if !prefs[0].CanLead || prefs[0].Confidence != "high" || prefs[0].PreferredKey != "D" {
		t.Errorf("pref[0] fields = %+v", prefs[0])
	}
}

func TestPipeline_SeedsCountersFromExistingIdentifiers(t *testing.T) {
	store := newTestStore()
	store.AddSong(testTenant, domain.Song{SongID: "S007", Title: "Oceans", Artist: "Hillsong United", DefaultKey: "A"})
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv",
			"2026-02-01,Sunday Morning,1,,Brand New Song,Somebody,C,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.SongsCreated != 1 {
		t.Fatalf("SongsCreated = %d, want 1", batch.SongsCreated)
	}

	songs := store.Songs(testTenant)
	if songs[len(songs)-1].SongID != "S008" {
		t.Errorf("new song ID = %q, want S008", songs[len(songs)-1].SongID)
	}
}

func TestPipeline_ReusesSongsByTitleArtistAcrossFiles(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("one.csv", "2026-02-01,Sunday Morning,1,,Oceans,Hillsong United,A,,,,,"),
		csvFile("two.csv", "2026-02-08,Sunday Evening,1,,OCEANS,hillsong united,A,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.SongsCreated != 1 || batch.SongsReused != 1 {
		t.Fatalf("SongsCreated = %d, SongsReused = %d, want 1 and 1", batch.SongsCreated, batch.SongsReused)
	}
	if len(store.Songs(testTenant)) != 1 {
		t.Fatalf("songs = %d, want 1", len(store.Songs(testTenant)))
	}
}

func TestPipeline_UnknownSongIDWithoutCreationPath(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv",
			"2026-02-01,Sunday Morning,1,S999,,,,,,,,",
			"2026-02-01,Sunday Morning,2,,Faithful Now,Vertical Worship,G,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The service still commits; only the unresolvable link is skipped.
	if batch.ServicesCreated != 1 || batch.LinksCreated != 1 {
		t.Fatalf("ServicesCreated = %d, LinksCreated = %d", batch.ServicesCreated, batch.LinksCreated)
	}
	errs := batch.Report.Errors()
	if len(errs) != 1 || errs[0].Kind != importer.KindReferenceNotFound {
		t.Fatalf("report = %v, want one reference-not-found error", batch.Report.Messages())
	}

	res := batch.Results[0]
	if len(res.Songs) != 2 {
		t.Fatalf("song results = %d, want 2", len(res.Songs))
	}
	if res.Songs[0].Outcome != importer.SongError {
		t.Errorf("song[0] outcome = %q, want error", res.Songs[0].Outcome)
	}
	if res.Songs[1].Outcome != importer.SongCreated {
		t.Errorf("song[1] outcome = %q, want created", res.Songs[1].Outcome)
	}
}

func TestPipeline_UnknownSongIDWithCreationPath(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv",
			"2026-02-01,Sunday Morning,1,S042,Graves Into Gardens,Elevation Worship,B,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.Report.Len() != 0 {
		t.Fatalf("report = %v, want empty", batch.Report.Messages())
	}

	songs := store.Songs(testTenant)
	if len(songs) != 1 || songs[0].SongID != "S042" || songs[0].DefaultKey != "B" {
		t.Fatalf("songs = %+v, want S042 created with its stated ID", songs)
	}
}

func TestPipeline_ExplicitSongIDDoesNotCollideWithAllocator(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	// The middle row names its own song ID one ahead of the counter; the
	// following allocation must step past it instead of reusing it.
	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv",
			"2026-02-01,Sunday Morning,1,,Oceans,Hillsong United,A,,,,,",
			"2026-02-01,Sunday Morning,2,S002,Cornerstone,Hillsong Worship,C,,,,,",
			"2026-02-01,Sunday Morning,3,,Way Maker,Sinach,E,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.Report.Len() != 0 {
		t.Fatalf("report = %v, want empty", batch.Report.Messages())
	}
	if batch.SongsCreated != 3 || batch.LinksCreated != 3 {
		t.Fatalf("SongsCreated = %d, LinksCreated = %d, want 3 and 3", batch.SongsCreated, batch.LinksCreated)
	}

	songs := store.Songs(testTenant)
	if len(songs) != 3 || songs[0].SongID != "S001" || songs[1].SongID != "S002" || songs[2].SongID != "S003" {
		t.Fatalf("songs = %+v, want S001, S002 and S003", songs)
	}
}

func TestPipeline_PreferenceUpsert(t *testing.T) {
	store := newTestStore()
	store.AddSong(testTenant, domain.Song{SongID: "S001", Title: "Trust in God", Artist: "Elevation Worship", DefaultKey: "D"})
	p := newTestPipeline(t, store)

	// Existing preference says Bill cannot lead this song.
	ctx := context.Background()
	if err := store.CreateLeaderPreference(ctx, testTenant, domain.LeaderPreference{
		EntryID: "E001", PersonID: "P001", SongID: "S001", CanLead: false,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := p.Run(ctx, testTenant, []importer.BatchFile{
		csvFile("plan.csv",
			"2026-02-01,Sunday Morning,1,S001,,,,D,,P001,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	prefs := store.Preferences(testTenant)
	if len(prefs) != 1 {
		t.Fatalf("preferences = %d, want the existing one only", len(prefs))
	}
	if !prefs[0].CanLead {
		t.Error("CanLead not flipped to true")
	}
}

func TestPipeline_SameLeaderAcrossServicesKeepsOnePreference(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv",
			"2026-02-01,Sunday Morning,1,,Oceans,Hillsong United,A,,,P001,,",
			"2026-02-08,Sunday Evening,1,,Oceans,Hillsong United,A,,,P001,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.ServicesCreated != 2 {
		t.Fatalf("ServicesCreated = %d, want 2", batch.ServicesCreated)
	}

	prefs := store.Preferences(testTenant)
	if len(prefs) != 1 {
		t.Fatalf("preferences = %d, want exactly 1", len(prefs))
	}
	if !prefs[0].CanLead {
		t.Error("CanLead = false, want true")
	}
}

func TestPipeline_LengthBackfill(t *testing.T) {
	store := newTestStore()
	store.AddSong(testTenant, domain.Song{SongID: "S001", Title: "Oceans", Artist: "Hillsong United", DefaultKey: "A"})
	p := newTestPipeline(t, store)

	_, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv", "2026-02-01,Sunday Morning,1,S001,,,,,6,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	songs := store.Songs(testTenant)
	if songs[0].LengthSeconds == nil || *songs[0].LengthSeconds != 360 {
		t.Fatalf("LengthSeconds = %v, want 360", songs[0].LengthSeconds)
	}
}

func TestPipeline_PDFImportWithLeaderMatching(t *testing.T) {
	store := newTestStore()
	pdf := stubPDF{ext: importer.Extraction{Tables: [][][]string{{
		{"February 1, 2026", "Sunday Morning Worship -"},
		{"", "", "1", "Cornerstone", "Hillsong Worship", "D", "5:10", "Bill and Sarah lead"},
	}}}}
	p := newTestPipeline(t, store, func(cfg *importer.Config) { cfg.PDF = pdf })

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		{Name: "plan.pdf", Data: []byte("%PDF-")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.Report.Len() != 0 {
		t.Fatalf("report = %v, want empty", batch.Report.Messages())
	}
	if batch.ServicesCreated != 1 || batch.SongsCreated != 1 {
		t.Fatalf("counters = %+v", batch)
	}

	// PDF sources carry no default key; the created song gets the fallback.
	songs := store.Songs(testTenant)
	if songs[0].DefaultKey != "C" {
		t.Errorf("DefaultKey = %q, want fallback C", songs[0].DefaultKey)
	}
	// PDF set-list time fills the song length.
	if songs[0].LengthSeconds == nil || *songs[0].LengthSeconds != 310 {
		t.Errorf("LengthSeconds = %v, want 310", songs[0].LengthSeconds)
	}

	// The first matched leader is the link's lead; both get preferences.
	links := store.Links(testTenant)
	if links[0].LeadPersonID != "P001" || links[0].KeyUsed != "D" {
		t.Errorf("link = %+v", links[0])
	}
	prefs := store.Preferences(testTenant)
	if len(prefs) != 2 || prefs[0].PersonID != "P001" || prefs[1].PersonID != "P002" {
		t.Fatalf("preferences = %+v, want Bill and Sarah", prefs)
	}
}

func TestPipeline_PDFWithoutDateIsSkipped(t *testing.T) {
	store := newTestStore()
	pdf := stubPDF{ext: importer.Extraction{Text: "nothing recognizable"}}
	p := newTestPipeline(t, store, func(cfg *importer.Config) { cfg.PDF = pdf })

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		{Name: "plan.pdf", Data: []byte("%PDF-")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.ServicesCreated != 0 {
		t.Fatalf("ServicesCreated = %d, want 0", batch.ServicesCreated)
	}
	if len(batch.Results) != 1 || batch.Results[0].Outcome != importer.ServiceSkipped {
		t.Fatalf("results = %+v, want one skipped service", batch.Results)
	}
	if batch.Report.Len() == 0 {
		t.Fatal("expected a report entry for the unparsable date")
	}
}

func TestPipeline_PDFUnconfigured(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		{Name: "plan.pdf", Data: []byte("%PDF-")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	errs := batch.Report.Errors()
	if len(errs) != 1 || errs[0].Kind != importer.KindFileFormat {
		t.Fatalf("report = %v, want one file-format error", batch.Report.Messages())
	}
}

func TestPipeline_UnsupportedFileType(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		{Name: "notes.txt", Data: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	errs := batch.Report.Errors()
	if len(errs) != 1 || errs[0].Kind != importer.KindFileFormat {
		t.Fatalf("report = %v, want one file-format error", batch.Report.Messages())
	}
	if batch.ServicesCreated != 0 {
		t.Errorf("ServicesCreated = %d, want 0", batch.ServicesCreated)
	}
}

func TestPipeline_EnricherFillsGaps(t *testing.T) {
	store := newTestStore()
	bpm := 72
	length := 296
	enr := &stubEnricher{meta: importer.Metadata{Key: "E", Tempo: domain.TempoSlow, BPM: &bpm, LengthSeconds: &length}}
	p := newTestPipeline(t, store, func(cfg *importer.Config) { cfg.Enricher = enr })

	_, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv", "2026-02-01,Sunday Morning,1,,Way Maker,Sinach,D,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	song := store.Songs(testTenant)[0]
	// The external key wins over the source-supplied one.
	if song.DefaultKey != "E" {
		t.Errorf("DefaultKey = %q, want E", song.DefaultKey)
	}
	if song.Tempo != domain.TempoSlow {
		t.Errorf("Tempo = %q, want %q", song.Tempo, domain.TempoSlow)
	}
	if song.BPM == nil || *song.BPM != 72 {
		t.Errorf("BPM = %v, want 72", song.BPM)
	}
	if song.LengthSeconds == nil || *song.LengthSeconds != 296 {
		t.Errorf("LengthSeconds = %v, want 296", song.LengthSeconds)
	}
	if len(enr.titles) != 1 || enr.titles[0] != "Way Maker" {
		t.Errorf("enricher asked about %v", enr.titles)
	}
}

func TestPipeline_EnricherSkippedWhenSongComplete(t *testing.T) {
	store := newTestStore()
	enr := &stubEnricher{meta: importer.Metadata{Key: "E"}}
	p := newTestPipeline(t, store, func(cfg *importer.Config) { cfg.Enricher = enr })

	// Length 5 minutes plus a default key still leaves tempo and BPM
	// unknown, so the lookup fires; an already-known song must not.
	store.AddSong(testTenant, domain.Song{SongID: "S001", Title: "Known Song", Artist: "Anyone", DefaultKey: "A"})

	_, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv", "2026-02-01,Sunday Morning,1,S001,,,,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(enr.titles) != 0 {
		t.Errorf("enricher called for existing song: %v", enr.titles)
	}
}

func TestPipeline_UnknownLeadPersonSilentlyDropped(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv", "2026-02-01,Sunday Morning,1,,Oceans,Hillsong United,A,,,P999,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.Report.Len() != 0 {
		t.Fatalf("report = %v, want empty", batch.Report.Messages())
	}
	links := store.Links(testTenant)
	if links[0].LeadPersonID != "" {
		t.Errorf("LeadPersonID = %q, want empty", links[0].LeadPersonID)
	}
	if len(store.Preferences(testTenant)) != 0 {
		t.Error("no preference should be created for an unknown person")
	}
}

// brokenPersonStore fails every person lookup while delegating the rest
// of the repository to the embedded store.
type brokenPersonStore struct {
	*memstore.Store
}

func (brokenPersonStore) FindPersonByID(context.Context, domain.Tenant, string) (*domain.Person, error) {
	return nil, errors.New("connection reset")
}

func TestPipeline_LeaderLookupFailureSkipsService(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store, func(cfg *importer.Config) {
		cfg.Repo = brokenPersonStore{store}
	})

	batch, err := p.Run(context.Background(), testTenant, []importer.BatchFile{
		csvFile("plan.csv", "2026-02-01,Sunday Morning,1,,Oceans,Hillsong United,A,,,P001,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	errs := batch.Report.Errors()
	if len(errs) != 1 || errs[0].Kind != importer.KindStorage {
		t.Fatalf("report = %v, want one storage error", batch.Report.Messages())
	}
	if len(batch.Results) != 1 || batch.Results[0].Outcome != importer.ServiceSkipped {
		t.Fatalf("results = %+v, want one skipped service", batch.Results)
	}
	if batch.ServicesCreated != 0 || len(store.Services(testTenant)) != 0 {
		t.Errorf("service committed despite the lookup failure")
	}
}

func TestPipeline_CancelledContextStopsBeforeNextFile(t *testing.T) {
	store := newTestStore()
	p := newTestPipeline(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := p.Run(ctx, testTenant, []importer.BatchFile{
		csvFile("plan.csv", "2026-02-01,Sunday Morning,1,,Oceans,Hillsong United,A,,,,,"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batch.ServicesCreated != 0 {
		t.Errorf("ServicesCreated = %d, want 0 after cancellation", batch.ServicesCreated)
	}
}

func TestPipeline_RequiresRepository(t *testing.T) {
	if _, err := importer.New(importer.Config{}); err == nil {
		t.Fatal("New() expected error without a repository")
	}
}
