package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/worshipplan/server/internal/domain"
)

// Key assigned to a created song when neither the source nor the enricher
// supplied one.
const fallbackSongKey = "C"

// songIndex maps normalized (title, artist) pairs to existing song IDs.
// It is built once per batch and updated in place as songs are created,
// so duplicate titles across files of one batch still dedup correctly.
type songIndex map[string]string

func songIndexKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(artist))
}

// resolver decides create-vs-reuse for songs within one batch.
type resolver struct {
	repo          Repository
	ids           *Allocator
	enricher      Enricher
	enrichTimeout time.Duration
	index         songIndex
	log           *slog.Logger
}

func newResolver(ctx context.Context, tenant domain.Tenant, p *Pipeline) (*resolver, error) {
	songs, err := p.repo.ListSongs(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	index := make(songIndex, len(songs))
	for _, s := range songs {
		index[songIndexKey(s.Title, s.Artist)] = s.SongID
	}
	return &resolver{
		repo:          p.repo,
		ids:           p.ids,
		enricher:      p.enricher,
		enrichTimeout: p.enrichTimeout,
		index:         index,
		log:           p.log,
	}, nil
}

// resolveSong returns the library song for an entry, creating it when
// absent. An entry with an explicit song identifier that is not found and
// offers no creation path (no title or no default key) yields a
// reference-not-found ImportError; storage failures are returned as plain
// errors and abort the caller's service.
func (r *resolver) resolveSong(ctx context.Context, tenant domain.Tenant, entry NormalizedSongEntry) (*domain.Song, bool, *ImportError, error) {
	if entry.SongID != "" {
		song, err := r.repo.FindSongByID(ctx, tenant, entry.SongID)
		if err != nil {
			return nil, false, nil, fmt.Errorf("find song %s: %w", entry.SongID, err)
		}
		if song != nil {
			return song, false, nil, nil
		}
		if entry.Title == "" || entry.DefaultKey == "" {
			return nil, false, &ImportError{
				Kind: KindReferenceNotFound,
				Line: entry.Line,
				Msg: fmt.Sprintf("song %s not found; to create it, provide %s and %s",
					entry.SongID, colSongTitle, colSongDefaultKey),
			}, nil
		}
		song2, err := r.createSong(ctx, tenant, entry.SongID, entry)
		if err != nil {
			return nil, false, nil, err
		}
		// The source chose this identifier; keep the counter ahead of it.
		r.ids.Observe(tenant, domain.KindSong, entry.SongID)
		return song2, true, nil, nil
	}

	if entry.Title == "" {
		return nil, false, &ImportError{
			Kind: KindReferenceNotFound,
			Line: entry.Line,
			Msg:  "song entry has no identifier and no title",
		}, nil
	}

	if songID, ok := r.index[songIndexKey(entry.Title, entry.Artist)]; ok {
		song, err := r.repo.FindSongByID(ctx, tenant, songID)
		if err != nil {
			return nil, false, nil, fmt.Errorf("find song %s: %w", songID, err)
		}
		if song != nil {
			return song, false, nil, nil
		}
		// Index entry pointed at a song deleted mid-batch; fall through
		// and create a fresh one.
	}

	songID, err := r.ids.Next(ctx, tenant, domain.KindSong)
	if err != nil {
		return nil, false, nil, err
	}
	song, err := r.createSong(ctx, tenant, songID, entry)
	if err != nil {
		return nil, false, nil, err
	}
	return song, true, nil, nil
}

// createSong persists a new library entry, consulting the enricher for
// fields the source did not supply. The enricher's key, when present,
// overrides the source-supplied key; its other fields only fill gaps.
func (r *resolver) createSong(ctx context.Context, tenant domain.Tenant, songID string, entry NormalizedSongEntry) (*domain.Song, error) {
	song := domain.Song{
		SongID:        songID,
		Title:         entry.Title,
		Artist:        entry.Artist,
		DefaultKey:    entry.DefaultKey,
		LengthSeconds: entry.LengthSeconds,
	}

	needsEnrichment := song.DefaultKey == "" || song.Tempo == "" ||
		song.BPM == nil || song.LengthSeconds == nil
	if r.enricher != nil && needsEnrichment {
		meta := r.lookup(ctx, entry.Title, entry.Artist)
		if meta.Key != "" {
			song.DefaultKey = meta.Key
		}
		if song.Tempo == "" {
			song.Tempo = meta.Tempo
		}
		if song.BPM == nil {
			song.BPM = meta.BPM
		}
		if song.LengthSeconds == nil {
			song.LengthSeconds = meta.LengthSeconds
		}
	}
	if song.DefaultKey == "" {
		song.DefaultKey = fallbackSongKey
	}

	if err := r.repo.CreateSong(ctx, tenant, song); err != nil {
		return nil, fmt.Errorf("create song %s: %w", songID, err)
	}
	r.index[songIndexKey(song.Title, song.Artist)] = songID

	r.log.Info("created song",
		"song_id", songID,
		"title", song.Title,
		"key", song.DefaultKey,
	)
	return &song, nil
}

// lookup calls the enricher under its own deadline. A slow or failing
// lookup degrades to no data; it never blocks the commit path.
func (r *resolver) lookup(ctx context.Context, title, artist string) Metadata {
	if r.enrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.enrichTimeout)
		defer cancel()
	}
	return r.enricher.Lookup(ctx, title, artist)
}
