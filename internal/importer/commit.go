package importer

import (
	"context"

	"github.com/worshipplan/server/internal/domain"
)

// Confidence assigned when an import marks a person able to lead a song.
const importedConfidence = "high"

// commitService persists one normalized service: the service row, then per
// song entry the resolved song, the service-song link, the song's usage
// statistics, and a leader-preference upsert for every matched leader.
// A storage failure aborts the service's remaining work but never touches
// previously committed services; the failure is reported, not returned.
func (p *Pipeline) commitService(ctx context.Context, tenant domain.Tenant, rec NormalizedServiceRecord, res *resolver, batch *BatchResult) ImportResult {
	report := batch.Report
	result := ImportResult{
		File:    rec.File,
		Date:    rec.Date,
		Name:    rec.Name,
		Outcome: ServiceSkipped,
	}

	planID, err := p.ids.Next(ctx, tenant, domain.KindService)
	if err != nil {
		report.Add(KindStorage, rec.File, 0, "service %q: %v", rec.Name, err)
		return result
	}
	err = p.repo.CreateService(ctx, tenant, domain.Service{
		PlanID:       planID,
		Date:         rec.Date,
		Name:         rec.Name,
		BandNotes:    rec.BandNotes,
		ServiceNotes: rec.ServiceNotes,
	})
	if err != nil {
		report.Add(KindStorage, rec.File, 0, "create service %q: %v", rec.Name, err)
		return result
	}
	result.PlanID = planID
	result.Outcome = ServiceCreated
	batch.ServicesCreated++

	p.log.Info("created service",
		"plan_id", planID,
		"date", rec.Date.Format("2006-01-02"),
		"name", rec.Name,
	)

	for _, entry := range rec.Songs {
		song, created, refErr, err := res.resolveSong(ctx, tenant, entry)
		if refErr != nil {
			report.Add(refErr.Kind, rec.File, refErr.Line, "%s", refErr.Msg)
			result.Songs = append(result.Songs, SongResult{
				Order:   entry.Order,
				Title:   entry.Title,
				Outcome: SongError,
				Reason:  refErr.Msg,
			})
			continue
		}
		if err != nil {
			report.Add(KindStorage, rec.File, entry.Line, "service %s: %v", planID, err)
			return result
		}
		if created {
			batch.SongsCreated++
		} else {
			batch.SongsReused++
		}

		keyUsed := entry.RequestedKey
		if keyUsed == "" {
			keyUsed = song.DefaultKey
		}
		link := domain.ServiceSong{
			PlanID:        planID,
			SongID:        song.SongID,
			Order:         entry.Order,
			KeyUsed:       keyUsed,
			LengthSeconds: entry.LengthSeconds,
		}
		if len(entry.MatchedPersonIDs) > 0 {
			link.LeadPersonID = entry.MatchedPersonIDs[0]
		}
		if err := p.repo.CreateServiceSong(ctx, tenant, link); err != nil {
			report.Add(KindStorage, rec.File, entry.Line, "link song %s to %s: %v", song.SongID, planID, err)
			return result
		}
		batch.LinksCreated++

		if err := p.repo.UpdateSongUsage(ctx, tenant, song.SongID, rec.Date); err != nil {
			report.Add(KindStorage, rec.File, entry.Line, "update usage of %s: %v", song.SongID, err)
			return result
		}

		// A source that knows the song's length fills a gap in the library.
		if !created && song.LengthSeconds == nil && entry.LengthSeconds != nil {
			if err := p.repo.SetSongLength(ctx, tenant, song.SongID, *entry.LengthSeconds); err != nil {
				report.Add(KindStorage, rec.File, entry.Line, "set length of %s: %v", song.SongID, err)
				return result
			}
		}

		if err := p.upsertLeaderPreferences(ctx, tenant, entry.MatchedPersonIDs, song.SongID, keyUsed); err != nil {
			report.Add(KindStorage, rec.File, entry.Line, "leader preferences for %s: %v", song.SongID, err)
			return result
		}

		outcome := SongReused
		if created {
			outcome = SongCreated
		}
		result.Songs = append(result.Songs, SongResult{
			Order:   entry.Order,
			Title:   song.Title,
			SongID:  song.SongID,
			Outcome: outcome,
		})
	}

	return result
}

// upsertLeaderPreferences marks every matched leader as able to lead the
// song. A missing preference is created; an existing one that is not yet
// leadable is flipped. Never creates a duplicate for a (person, song) pair.
func (p *Pipeline) upsertLeaderPreferences(ctx context.Context, tenant domain.Tenant, personIDs []string, songID, keyUsed string) error {
	for _, personID := range personIDs {
		pref, err := p.repo.FindLeaderPreference(ctx, tenant, personID, songID)
		if err != nil {
			return err
		}
		if pref == nil {
			entryID, err := p.ids.Next(ctx, tenant, domain.KindPreference)
			if err != nil {
				return err
			}
			err = p.repo.CreateLeaderPreference(ctx, tenant, domain.LeaderPreference{
				EntryID:      entryID,
				PersonID:     personID,
				SongID:       songID,
				PreferredKey: keyUsed,
				CanLead:      true,
				Confidence:   importedConfidence,
			})
			if err != nil {
				return err
			}
			continue
		}
		if !pref.CanLead {
			if err := p.repo.SetLeaderPreferenceCanLead(ctx, tenant, pref.EntryID, true); err != nil {
				return err
			}
		}
	}
	return nil
}
