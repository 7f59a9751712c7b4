// Package postgres implements the import pipeline's repository on top of
// a pgx connection pool. All statements are tenant-scoped; identifiers
// are the human-readable codes generated by the pipeline, not surrogate
// keys.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/worshipplan/server/internal/domain"
	"github.com/worshipplan/server/internal/importer"
)

// Repository is a Postgres-backed importer.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps an existing pool. The pool's lifecycle stays with
// the caller.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListRoster(ctx context.Context, tenant domain.Tenant) ([]domain.Person, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT person_id, name, lead_vocal, harmony_vocal
		FROM people
		WHERE tenant = $1
		ORDER BY lower(name)`, string(tenant))
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var out []domain.Person
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.PersonID, &p.Name, &p.LeadVocal, &p.HarmonyVocal); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) FindPersonByID(ctx context.Context, tenant domain.Tenant, personID string) (*domain.Person, error) {
	var p domain.Person
	err := r.pool.QueryRow(ctx, `
		SELECT person_id, name, lead_vocal, harmony_vocal
		FROM people
		WHERE tenant = $1 AND person_id = $2`, string(tenant), personID).
		Scan(&p.PersonID, &p.Name, &p.LeadVocal, &p.HarmonyVocal)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find person %s: %w", personID, err)
	}
	return &p, nil
}

func (r *Repository) ListSongs(ctx context.Context, tenant domain.Tenant) ([]domain.Song, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT song_id, title, artist, default_key, tempo, bpm,
		       length_seconds, last_used, times_used
		FROM songs
		WHERE tenant = $1`, string(tenant))
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var out []domain.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, song)
	}
	return out, rows.Err()
}

func (r *Repository) FindSongByID(ctx context.Context, tenant domain.Tenant, songID string) (*domain.Song, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT song_id, title, artist, default_key, tempo, bpm,
		       length_seconds, last_used, times_used
		FROM songs
		WHERE tenant = $1 AND song_id = $2`, string(tenant), songID)
	if err != nil {
		return nil, fmt.Errorf("find song %s: %w", songID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	song, err := scanSong(rows)
	if err != nil {
		return nil, err
	}
	return &song, nil
}

func (r *Repository) CreateSong(ctx context.Context, tenant domain.Tenant, song domain.Song) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO songs (tenant, song_id, title, artist, default_key,
		                   tempo, bpm, length_seconds, last_used, times_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(tenant), song.SongID, song.Title, song.Artist, song.DefaultKey,
		song.Tempo, toPgInt(song.BPM), toPgInt(song.LengthSeconds),
		toPgDate(song.LastUsed), song.TimesUsed)
	if err != nil {
		return fmt.Errorf("create song %s: %w", song.SongID, err)
	}
	return nil
}

func (r *Repository) UpdateSongUsage(ctx context.Context, tenant domain.Tenant, songID string, date time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE songs
		SET last_used = GREATEST(COALESCE(last_used, $3::date), $3::date),
		    times_used = times_used + 1
		WHERE tenant = $1 AND song_id = $2`,
		string(tenant), songID, date)
	if err != nil {
		return fmt.Errorf("update usage of %s: %w", songID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update usage of %s: song not found", songID)
	}
	return nil
}

func (r *Repository) SetSongLength(ctx context.Context, tenant domain.Tenant, songID string, lengthSeconds int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE songs SET length_seconds = $3
		WHERE tenant = $1 AND song_id = $2`,
		string(tenant), songID, lengthSeconds)
	if err != nil {
		return fmt.Errorf("set length of %s: %w", songID, err)
	}
	return nil
}

func (r *Repository) CreateService(ctx context.Context, tenant domain.Tenant, service domain.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (tenant, plan_id, service_date, service_name,
		                      band_notes, service_notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(tenant), service.PlanID, service.Date, service.Name,
		service.BandNotes, service.ServiceNotes)
	if err != nil {
		return fmt.Errorf("create service %s: %w", service.PlanID, err)
	}
	return nil
}

func (r *Repository) CreateServiceSong(ctx context.Context, tenant domain.Tenant, link domain.ServiceSong) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_songs (tenant, plan_id, song_id, song_order,
		                           key_used, length_seconds, lead_person_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(tenant), link.PlanID, link.SongID, link.Order,
		link.KeyUsed, toPgInt(link.LengthSeconds), toPgText(link.LeadPersonID))
	if err != nil {
		return fmt.Errorf("link song %s to %s: %w", link.SongID, link.PlanID, err)
	}
	return nil
}

func (r *Repository) FindLeaderPreference(ctx context.Context, tenant domain.Tenant, personID, songID string) (*domain.LeaderPreference, error) {
	var pref domain.LeaderPreference
	err := r.pool.QueryRow(ctx, `
		SELECT entry_id, person_id, song_id, preferred_key, can_lead, confidence
		FROM leader_preferences
		WHERE tenant = $1 AND person_id = $2 AND song_id = $3`,
		string(tenant), personID, songID).
		Scan(&pref.EntryID, &pref.PersonID, &pref.SongID,
			&pref.PreferredKey, &pref.CanLead, &pref.Confidence)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find preference %s/%s: %w", personID, songID, err)
	}
	return &pref, nil
}

func (r *Repository) CreateLeaderPreference(ctx context.Context, tenant domain.Tenant, pref domain.LeaderPreference) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leader_preferences (tenant, entry_id, person_id, song_id,
		                                preferred_key, can_lead, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(tenant), pref.EntryID, pref.PersonID, pref.SongID,
		pref.PreferredKey, pref.CanLead, pref.Confidence)
	if err != nil {
		return fmt.Errorf("create preference %s: %w", pref.EntryID, err)
	}
	return nil
}

func (r *Repository) SetLeaderPreferenceCanLead(ctx context.Context, tenant domain.Tenant, entryID string, canLead bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leader_preferences SET can_lead = $3
		WHERE tenant = $1 AND entry_id = $2`,
		string(tenant), entryID, canLead)
	if err != nil {
		return fmt.Errorf("set can_lead on %s: %w", entryID, err)
	}
	return nil
}

// identifier columns per entity kind, for the max-scan that seeds the
// allocator.
var identifierQueries = map[domain.EntityKind]string{
	domain.KindService:    `SELECT plan_id FROM services WHERE tenant = $1`,
	domain.KindSong:       `SELECT song_id FROM songs WHERE tenant = $1`,
	domain.KindPerson:     `SELECT person_id FROM people WHERE tenant = $1`,
	domain.KindPreference: `SELECT entry_id FROM leader_preferences WHERE tenant = $1`,
}

func (r *Repository) MaxIdentifier(ctx context.Context, tenant domain.Tenant, kind domain.EntityKind) (int, error) {
	query, ok := identifierQueries[kind]
	if !ok {
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}
	rows, err := r.pool.Query(ctx, query, string(tenant))
	if err != nil {
		return 0, fmt.Errorf("scan %s identifiers: %w", kind, err)
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan identifier: %w", err)
		}
		if n, ok := importer.IdentifierNumber(kind, id); ok && n > max {
			max = n
		}
	}
	return max, rows.Err()
}

func scanSong(rows pgx.Rows) (domain.Song, error) {
	var (
		song     domain.Song
		bpm      pgtype.Int4
		length   pgtype.Int4
		lastUsed pgtype.Date
	)
	err := rows.Scan(&song.SongID, &song.Title, &song.Artist, &song.DefaultKey,
		&song.Tempo, &bpm, &length, &lastUsed, &song.TimesUsed)
	if err != nil {
		return domain.Song{}, fmt.Errorf("scan song: %w", err)
	}
	if bpm.Valid {
		v := int(bpm.Int32)
		song.BPM = &v
	}
	if length.Valid {
		v := int(length.Int32)
		song.LengthSeconds = &v
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		song.LastUsed = &t
	}
	return song, nil
}

func toPgInt(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func toPgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
