// Package memstore is an in-memory repository used by dry-run imports and
// tests. It mirrors the persistence semantics of the Postgres store:
// tenant-scoped lookups, roster ordered by name, (nil, nil) for missing
// records.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/worshipplan/server/internal/domain"
	"github.com/worshipplan/server/internal/importer"
)

// Store holds all tenants' records in memory.
type Store struct {
	mu      sync.RWMutex
	tenants map[domain.Tenant]*tenantData
}

type tenantData struct {
	people   []domain.Person
	songs    []domain.Song
	services []domain.Service
	links    []domain.ServiceSong
	prefs    []domain.LeaderPreference
}

// New returns an empty store.
func New() *Store {
	return &Store{tenants: make(map[domain.Tenant]*tenantData)}
}

// tenant returns the tenant's data, creating it. Callers must hold the
// write lock.
func (s *Store) tenant(t domain.Tenant) *tenantData {
	td, ok := s.tenants[t]
	if !ok {
		td = &tenantData{}
		s.tenants[t] = td
	}
	return td
}

// view returns the tenant's data without creating a map entry; an empty
// value when the tenant has no records yet. Callers must hold at least
// the read lock.
func (s *Store) view(t domain.Tenant) *tenantData {
	td, ok := s.tenants[t]
	if !ok {
		return &tenantData{}
	}
	return td
}

// AddPerson seeds a roster member.
func (s *Store) AddPerson(t domain.Tenant, p domain.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenant(t).people = append(s.tenant(t).people, p)
}

// AddSong seeds a library song.
func (s *Store) AddSong(t domain.Tenant, song domain.Song) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenant(t).songs = append(s.tenant(t).songs, song)
}

// Services returns all committed services in creation order.
func (s *Store) Services(t domain.Tenant) []domain.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Service(nil), s.view(t).services...)
}

// Songs returns all library songs in creation order.
func (s *Store) Songs(t domain.Tenant) []domain.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Song(nil), s.view(t).songs...)
}

// Links returns all service-song links in creation order.
func (s *Store) Links(t domain.Tenant) []domain.ServiceSong {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ServiceSong(nil), s.view(t).links...)
}

// Preferences returns all leader preferences in creation order.
func (s *Store) Preferences(t domain.Tenant) []domain.LeaderPreference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LeaderPreference(nil), s.view(t).prefs...)
}

func (s *Store) ListRoster(_ context.Context, t domain.Tenant) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Person(nil), s.view(t).people...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) FindPersonByID(_ context.Context, t domain.Tenant, personID string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.view(t).people {
		if p.PersonID == personID {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListSongs(_ context.Context, t domain.Tenant) ([]domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Song(nil), s.view(t).songs...), nil
}

func (s *Store) FindSongByID(_ context.Context, t domain.Tenant, songID string) (*domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, song := range s.view(t).songs {
		if song.SongID == songID {
			out := song
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateSong(_ context.Context, t domain.Tenant, song domain.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for _, existing := range td.songs {
		if existing.SongID == song.SongID {
			return fmt.Errorf("duplicate song id %s", song.SongID)
		}
	}
	td.songs = append(td.songs, song)
	return nil
}

func (s *Store) UpdateSongUsage(_ context.Context, t domain.Tenant, songID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for i := range td.songs {
		if td.songs[i].SongID != songID {
			continue
		}
		if td.songs[i].LastUsed == nil || date.After(*td.songs[i].LastUsed) {
			d := date
			td.songs[i].LastUsed = &d
		}
		td.songs[i].TimesUsed++
		return nil
	}
	return fmt.Errorf("song %s not found", songID)
}

func (s *Store) SetSongLength(_ context.Context, t domain.Tenant, songID string, lengthSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for i := range td.songs {
		if td.songs[i].SongID == songID {
			td.songs[i].LengthSeconds = &lengthSeconds
			return nil
		}
	}
	return fmt.Errorf("song %s not found", songID)
}

func (s *Store) CreateService(_ context.Context, t domain.Tenant, service domain.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for _, existing := range td.services {
		if existing.PlanID == service.PlanID {
			return fmt.Errorf("duplicate plan id %s", service.PlanID)
		}
	}
	td.services = append(td.services, service)
	return nil
}

func (s *Store) CreateServiceSong(_ context.Context, t domain.Tenant, link domain.ServiceSong) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for _, existing := range td.links {
		if existing.PlanID == link.PlanID && existing.Order == link.Order {
			return fmt.Errorf("duplicate song order %d in %s", link.Order, link.PlanID)
		}
	}
	td.links = append(td.links, link)
	return nil
}

func (s *Store) FindLeaderPreference(_ context.Context, t domain.Tenant, personID, songID string) (*domain.LeaderPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pref := range s.view(t).prefs {
		if pref.PersonID == personID && pref.SongID == songID {
			out := pref
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateLeaderPreference(_ context.Context, t domain.Tenant, pref domain.LeaderPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for _, existing := range td.prefs {
		if existing.PersonID == pref.PersonID && existing.SongID == pref.SongID {
			return fmt.Errorf("duplicate preference for %s/%s", pref.PersonID, pref.SongID)
		}
	}
	td.prefs = append(td.prefs, pref)
	return nil
}

func (s *Store) SetLeaderPreferenceCanLead(_ context.Context, t domain.Tenant, entryID string, canLead bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.tenant(t)
	for i := range td.prefs {
		if td.prefs[i].EntryID == entryID {
			td.prefs[i].CanLead = canLead
			return nil
		}
	}
	return fmt.Errorf("preference %s not found", entryID)
}

func (s *Store) MaxIdentifier(_ context.Context, t domain.Tenant, kind domain.EntityKind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td := s.view(t)

	max := 0
	scan := func(id string) {
		if n, ok := importer.IdentifierNumber(kind, id); ok && n > max {
			max = n
		}
	}
	switch kind {
	case domain.KindService:
		for _, svc := range td.services {
			scan(svc.PlanID)
		}
	case domain.KindSong:
		for _, song := range td.songs {
			scan(song.SongID)
		}
	case domain.KindPerson:
		for _, p := range td.people {
			scan(p.PersonID)
		}
	case domain.KindPreference:
		for _, pref := range td.prefs {
			scan(pref.EntryID)
		}
	default:
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}
	return max, nil
}
