// Package domain defines the canonical records managed by the planner:
// people, songs, services, the songs placed within a service, and
// per-person song-leading preferences. All records are scoped to a tenant;
// the tenant key itself is owned by the caller and treated as opaque here.
package domain

import "time"

// Tenant identifies the isolation boundary for all lookups and identifiers.
type Tenant string

// EntityKind names an identifier sequence within a tenant.
type EntityKind string

const (
	KindService    EntityKind = "service"
	KindSong       EntityKind = "song"
	KindPerson     EntityKind = "person"
	KindPreference EntityKind = "preference"
)

// IDPrefix returns the human-readable prefix for generated identifiers of
// this kind ("SV001", "S001", "P001", "E001").
func (k EntityKind) IDPrefix() string {
	switch k {
	case KindService:
		return "SV"
	case KindSong:
		return "S"
	case KindPerson:
		return "P"
	case KindPreference:
		return "E"
	}
	return ""
}

// Person is a roster member eligible to be matched as a song leader.
type Person struct {
	PersonID     string
	Name         string
	LeadVocal    bool
	HarmonyVocal bool
}

// Tempo labels carried on songs. Blank means unknown.
const (
	TempoSlow    = "slow"
	TempoMedSlow = "med_slow"
	TempoMedium  = "medium"
	TempoMedFast = "med_fast"
	TempoFast    = "fast"
)

// Song is a library entry shared across services.
type Song struct {
	SongID        string
	Title         string
	Artist        string
	DefaultKey    string
	Tempo         string
	BPM           *int
	LengthSeconds *int
	LastUsed      *time.Time
	TimesUsed     int
}

// Service is a single calendar-dated gathering with an ordered set of songs.
type Service struct {
	PlanID       string
	Date         time.Time
	Name         string
	BandNotes    string
	ServiceNotes string
}

// ServiceSong is the occurrence of one song within one service.
type ServiceSong struct {
	PlanID        string
	SongID        string
	Order         int
	KeyUsed       string
	LengthSeconds *int
	LeadPersonID  string // empty when no primary leader was resolved
}

// LeaderPreference records a person's ability to lead a song. At most one
// exists per (person, song) pair.
type LeaderPreference struct {
	EntryID      string
	PersonID     string
	SongID       string
	PreferredKey string
	CanLead      bool
	Confidence   string // "high", "medium", "low", or blank
}
