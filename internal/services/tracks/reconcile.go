// Package tracks merges LLM-authored song references with catalog metadata.
package tracks

import (
	"strings"

	"github.com/ternarybob/musicdoc/internal/models"
	"golang.org/x/text/cases"
)

// index holds the three lookups built in one pass over the catalog
type index struct {
	byID  map[string]models.CatalogTrack
	byURI map[string]models.CatalogTrack
	byKey map[string]models.CatalogTrack
	fold  cases.Caser
}

// matchKey normalizes title and artist into the "title|artist" lookup key
func (ix *index) matchKey(title, artist string) string {
	return ix.fold.String(strings.TrimSpace(title)) + "|" + ix.fold.String(strings.TrimSpace(artist))
}

func buildIndex(catalog []models.CatalogTrack) *index {
	ix := &index{
		byID:  make(map[string]models.CatalogTrack, len(catalog)),
		byURI: make(map[string]models.CatalogTrack, len(catalog)),
		byKey: make(map[string]models.CatalogTrack, len(catalog)),
		fold:  cases.Fold(),
	}

	for _, t := range catalog {
		if t.ID != "" {
			ix.byID[t.ID] = t
		}
		if t.URI != "" {
			ix.byURI[t.URI] = t
		}
		if key := ix.matchKey(t.Name, t.Artist); key != "|" {
			ix.byKey[key] = t
		}
	}

	return ix
}

func (ix *index) lookup(entry models.TimelineEntry) (models.CatalogTrack, bool) {
	if entry.TrackID != "" {
		if t, ok := ix.byID[entry.TrackID]; ok {
			return t, true
		}
	}
	if entry.TrackURI != "" {
		if t, ok := ix.byURI[entry.TrackURI]; ok {
			return t, true
		}
	}
	t, ok := ix.byKey[ix.matchKey(entry.Title, entry.Artist)]
	return t, ok
}

// Reconcile returns a copy of timeline where every song with a catalog match
// (track id, then uri, then folded title|artist) carries the match's duration.
// Matches without a positive duration, unmatched songs and narration are copied unchanged.
// The input is not modified and entry count and order are preserved.
func Reconcile(timeline []models.TimelineEntry, catalog []models.CatalogTrack) []models.TimelineEntry {
	out := models.CloneTimeline(timeline)
	if len(out) == 0 || len(catalog) == 0 {
		return out
	}

	ix := buildIndex(catalog)
	for i, entry := range out {
		if !entry.IsSong() {
			continue
		}
		match, ok := ix.lookup(entry)
		if !ok || match.DurationMS <= 0 {
			continue
		}
		out[i].DurationMS = match.DurationMS
		out[i].Duration = float64(match.DurationMS) / 1000
	}

	return out
}

// CountMatched returns how many songs of a reconciled timeline carry a duration
func CountMatched(timeline []models.TimelineEntry) int {
	n := 0
	for _, e := range timeline {
		if e.IsSong() && e.DurationMS > 0 {
			n++
		}
	}
	return n
}
