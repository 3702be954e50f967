package documentary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
	"github.com/ternarybob/musicdoc/internal/services/narrative"
	"github.com/ternarybob/musicdoc/internal/services/spotify"
	"github.com/ternarybob/musicdoc/internal/services/tracks"
)

// pipelineRun carries the state of one job through the stages
type pipelineRun struct {
	svc    *Service
	jobID  string
	params models.JobParams
	ctx    context.Context

	artist    *models.Artist
	topTracks []models.CatalogTrack
	plan      *models.DocumentaryPlan
	found     []models.CatalogTrack
	backup    []models.CatalogTrack
	counts    models.TrackSearchResults
	doc       *models.Documentary
	playlist  *models.Playlist
	timeline  []models.TimelineEntry
}

func (r *pipelineRun) execute() (*models.JobResult, error) {
	steps := []func() error{
		r.identifyArtist,
		r.fetchTopTracks,
		r.planDocumentary,
		r.searchRequiredTracks,
		r.fetchBackupCatalog,
		r.generateDocumentary,
		r.synthesizeNarration,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	data := *r.doc
	data.Timeline = r.timeline

	return &models.JobResult{
		Data:               data,
		PlaylistID:         r.playlist.ID,
		Plan:               r.plan,
		TrackSearchResults: r.counts,
	}, nil
}

// report pushes a progress update; a failed update never stops the pipeline
func (r *pipelineRun) report(s stage, progress int, detail string) {
	err := r.svc.deps.Jobs.UpdateProgress(r.jobID, models.ProgressUpdate{
		Stage:      s.Number,
		StageLabel: s.Label,
		Progress:   progress,
		Detail:     detail,
	})
	if err != nil {
		r.svc.logger.Warn().
			Err(err).
			Str("job_id", r.jobID).
			Int("stage", s.Number).
			Msg("Progress update rejected")
	}
}

func (r *pipelineRun) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, r.svc.callTimeout)
}

// Stage 1
func (r *pipelineRun) identifyArtist() error {
	s := stageIdentify
	r.report(s, s.Start, fmt.Sprintf("Looking up %q", r.params.Topic))

	ctx, cancel := r.callContext()
	defer cancel()

	artist, err := r.svc.deps.Catalog.SearchArtist(ctx, r.params.Topic, r.params.AccessToken)
	if err != nil {
		return s.fail(err)
	}
	if artist == nil {
		return s.fail(fmt.Errorf("%w: %s", ErrArtistNotFound, r.params.Topic))
	}
	r.artist = artist

	r.report(s, s.End, "Found "+artist.Name)
	return nil
}

// Stage 2
func (r *pipelineRun) fetchTopTracks() error {
	s := stageTopTracks
	r.report(s, s.Start, "Fetching popular tracks for "+r.artist.Name)

	ctx, cancel := r.callContext()
	defer cancel()

	topTracks, err := r.svc.deps.Catalog.GetTopTracks(ctx, r.artist.ID, r.params.Market, r.params.AccessToken)
	if err != nil {
		// Popular tracks only inform planning; a catalog rejection degrades, transport failures do not
		var apiErr *spotify.APIError
		if !errors.As(err, &apiErr) {
			return s.fail(err)
		}
		r.svc.logger.Warn().
			Err(err).
			Str("job_id", r.jobID).
			Int("status", apiErr.StatusCode).
			Msg("Top tracks unavailable, continuing without them")
		r.topTracks = nil
		r.report(s, s.End, "Top tracks unavailable, continuing without popular tracks")
		return nil
	}
	r.topTracks = topTracks

	r.report(s, s.End, fmt.Sprintf("Found %d popular tracks", len(topTracks)))
	return nil
}

// Stage 3
func (r *pipelineRun) planDocumentary() error {
	s := stagePlan
	r.report(s, s.Start, "Planning narrative arc")

	ctx, cancel := r.callContext()
	defer cancel()

	plan, err := r.svc.deps.Planner.Plan(ctx, r.artist.Name, r.topTracks, r.params.Prompt)
	if err != nil {
		return s.fail(err)
	}
	if plan == nil {
		return s.fail(fmt.Errorf("planner returned no plan"))
	}
	r.plan = plan

	r.report(s, s.End, fmt.Sprintf("Planned %q with %d key tracks", plan.Title, len(plan.RequiredTracks)))
	return nil
}

// Stage 4: soft. Search failures count as missing.
func (r *pipelineRun) searchRequiredTracks() error {
	s := stageSearch
	required := r.plan.RequiredTracks
	r.report(s, s.Start, fmt.Sprintf("Searching for %d key tracks", len(required)))

	ctx, cancel := r.callContext()
	defer cancel()

	matches, err := r.svc.deps.Catalog.SearchRequiredTracks(ctx, required, r.artist.Name, r.params.Market, r.params.AccessToken)
	if err != nil {
		r.svc.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("Required track search incomplete")
	}

	var missing []string
	for _, m := range matches {
		if m.Found != nil {
			r.found = append(r.found, *m.Found)
		} else {
			missing = append(missing, m.Requested.SongTitle)
		}
	}
	r.counts.Found = len(r.found)
	r.counts.Missing = len(required) - len(r.found)

	detail := fmt.Sprintf("Found %d of %d key tracks", r.counts.Found, len(required))
	if len(missing) > 0 {
		detail += " (missing: " + strings.Join(missing, ", ") + ")"
	}
	r.report(s, s.End, detail)
	return nil
}

// Stage 5: soft, and only when the plan's songs were not all found
func (r *pipelineRun) fetchBackupCatalog() error {
	s := stageBackup
	if r.counts.Found >= songsPerDocumentary {
		r.report(s, s.End, "All key tracks found, backup catalog skipped")
		return nil
	}

	r.report(s, s.Start, "Fetching additional tracks from the catalog")

	ctx, cancel := r.callContext()
	defer cancel()

	backup, err := r.svc.deps.Catalog.FetchArtistCatalog(ctx, r.artist.ID, r.params.Market, r.params.AccessToken, r.svc.backupDesiredCount)
	if err != nil {
		r.svc.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("Backup catalog fetch failed")
		r.report(s, s.End, "Backup catalog unavailable, continuing with found tracks")
		return nil
	}
	r.backup = backup
	r.counts.Backup = len(backup)

	r.report(s, s.End, fmt.Sprintf("Fetched %d backup tracks", len(backup)))
	return nil
}

// Stage 6: generation and the early playlist save are both hard
func (r *pipelineRun) generateDocumentary() error {
	s := stageGenerate
	r.report(s, s.Start, "Writing the documentary")

	catalog := models.MergeTracks(r.found, r.backup)

	genCtx, cancel := r.callContext()
	doc, err := r.svc.deps.Generator.Generate(genCtx, interfaces.GenerateRequest{
		Topic:               r.artist.Name,
		Prompt:              narrative.BuildEnhancedPrompt(r.plan, r.params.Prompt),
		Catalog:             catalog,
		NarrationTargetSecs: r.params.NarrationTargetSecs,
	})
	cancel()
	if err != nil {
		return s.fail(err)
	}
	if doc == nil {
		return s.fail(fmt.Errorf("generator returned no documentary"))
	}
	r.doc = doc
	r.timeline = tracks.Reconcile(doc.Timeline, catalog)

	r.svc.logger.Debug().
		Str("job_id", r.jobID).
		Int("entries", len(r.timeline)).
		Int("matched", tracks.CountMatched(r.timeline)).
		Msg("Timeline reconciled")

	saveCtx, cancel := r.callContext()
	defer cancel()

	playlist, err := r.svc.deps.Playlists.Save(saveCtx, &models.Playlist{
		OwnerID:  r.params.OwnerID,
		Title:    firstNonEmpty(doc.Title, r.plan.Title, "Music history: "+r.artist.Name),
		Topic:    firstNonEmpty(doc.Topic, r.artist.Name),
		Summary:  firstNonEmpty(doc.Summary, r.plan.NarrativeArc),
		Timeline: models.CloneTimeline(r.timeline),
	})
	if err != nil {
		return s.fail(fmt.Errorf("save playlist: %w", err))
	}
	r.playlist = playlist

	r.report(s, s.End, fmt.Sprintf("Saved playlist with %d entries", len(r.timeline)))
	return nil
}

// Stage 7: soft. Any failure leaves narration entries without audio.
func (r *pipelineRun) synthesizeNarration() error {
	s := stageNarration

	var positions []int
	var texts []string
	for i, e := range r.timeline {
		if e.IsNarration() {
			positions = append(positions, i)
			texts = append(texts, e.Text)
		}
	}

	if len(texts) == 0 {
		r.report(s, s.End, "No narration segments")
		return nil
	}

	r.report(s, s.Start, fmt.Sprintf("Generating narration for %d segments", len(texts)))

	ctx, cancel := context.WithTimeout(r.ctx, r.svc.ttsTimeout)
	defer cancel()

	span := s.End - 1 - s.Start
	urls, err := r.svc.deps.Narration.SynthesizeBatch(ctx, texts, interfaces.BatchOptions{
		PlaylistID: r.playlist.ID,
		JobID:      r.jobID,
		OnProgress: func(done, total int) {
			if total <= 0 {
				return
			}
			r.report(s, s.Start+span*done/total, fmt.Sprintf("Narration %d/%d", done, total))
		},
	})
	if err != nil {
		r.svc.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("Narration batch failed")
		r.report(s, s.End, "Narration skipped, continuing without audio")
		return nil
	}

	attached := 0
	for k, pos := range positions {
		if k < len(urls) && urls[k] != nil && *urls[k] != "" {
			r.timeline[pos].TTSURL = *urls[k]
			attached++
		}
	}

	if attached == 0 {
		r.report(s, s.End, "Narration skipped, no audio was produced")
		return nil
	}

	updCtx, updCancel := r.callContext()
	defer updCancel()

	if _, err := r.svc.deps.Playlists.Update(updCtx, r.playlist.ID, models.PlaylistUpdate{
		Timeline: models.CloneTimeline(r.timeline),
	}); err != nil {
		r.svc.logger.Warn().Err(err).Str("job_id", r.jobID).Str("playlist_id", r.playlist.ID).Msg("Could not store narration audio on playlist")
	}

	r.report(s, s.End, fmt.Sprintf("Narration ready for %d of %d segments", attached, len(texts)))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
