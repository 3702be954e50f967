package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/musicdoc/internal/models"
)

// SearchArtist returns the top artist match for query, or nil when nothing matched.
func (c *Client) SearchArtist(ctx context.Context, query, accessToken string) (*models.Artist, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("artist query is required")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "artist")
	params.Set("limit", "5")

	var resp artistSearchResponse
	if err := c.get(ctx, accessToken, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("search artist %q: %w", query, err)
	}

	if len(resp.Artists.Items) == 0 {
		return nil, nil
	}
	return resp.Artists.Items[0].toModel(), nil
}

// GetTopTracks returns the artist's most popular tracks in the market.
func (c *Client) GetTopTracks(ctx context.Context, artistID, market, accessToken string) ([]models.CatalogTrack, error) {
	params := url.Values{}
	params.Set("market", marketOrDefault(market))

	var resp topTracksResponse
	if err := c.get(ctx, accessToken, "/artists/"+url.PathEscape(artistID)+"/top-tracks", params, &resp); err != nil {
		return nil, fmt.Errorf("top tracks for %s: %w", artistID, err)
	}
	return normalizeTracks(resp.Tracks, nil), nil
}

// SearchTrack runs a raw track search.
func (c *Client) SearchTrack(ctx context.Context, query, market, accessToken string, limit int) ([]models.CatalogTrack, error) {
	if limit <= 0 {
		limit = c.searchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("market", marketOrDefault(market))

	var resp trackSearchResponse
	if err := c.get(ctx, accessToken, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("search track %q: %w", query, err)
	}
	return normalizeTracks(resp.Tracks.Items, nil), nil
}

// ListAlbums returns one page of albums, singles and compilations.
func (c *Client) ListAlbums(ctx context.Context, artistID, market, accessToken string, limit, offset int) ([]models.Album, error) {
	if limit <= 0 || limit > albumPageSize {
		limit = albumPageSize
	}

	params := url.Values{}
	params.Set("include_groups", "album,single,compilation")
	params.Set("market", marketOrDefault(market))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var resp albumsResponse
	if err := c.get(ctx, accessToken, "/artists/"+url.PathEscape(artistID)+"/albums", params, &resp); err != nil {
		return nil, fmt.Errorf("albums for %s at offset %d: %w", artistID, offset, err)
	}

	albums := make([]models.Album, 0, len(resp.Items))
	for _, a := range resp.Items {
		albums = append(albums, a.toModel())
	}
	return albums, nil
}

// GetAlbumTracks returns the album's tracks with album name and release date filled in.
func (c *Client) GetAlbumTracks(ctx context.Context, album models.Album, market, accessToken string) ([]models.CatalogTrack, error) {
	params := url.Values{}
	params.Set("market", marketOrDefault(market))
	params.Set("limit", strconv.Itoa(albumPageSize))

	var resp albumTracksResponse
	if err := c.get(ctx, accessToken, "/albums/"+url.PathEscape(album.ID)+"/tracks", params, &resp); err != nil {
		return nil, fmt.Errorf("tracks for album %s: %w", album.ID, err)
	}

	fallback := &apiAlbum{ID: album.ID, Name: album.Name, ReleaseDate: album.ReleaseDate, AlbumType: album.AlbumType}
	return normalizeTracks(resp.Items, fallback), nil
}

// RequiredTrackQuery builds the field-filtered search query for one planned song.
func RequiredTrackQuery(title, artistName string) string {
	return fmt.Sprintf("track:%q artist:%q", strings.TrimSpace(title), strings.TrimSpace(artistName))
}

// SearchRequiredTracks looks up each planned song and keeps the best match.
// Searches run in order; a failed or empty search leaves Found nil.
func (c *Client) SearchRequiredTracks(ctx context.Context, required []models.RequiredTrack, artistName, market, accessToken string) ([]models.RequiredTrackMatch, error) {
	matches := make([]models.RequiredTrackMatch, 0, len(required))

	for _, req := range required {
		match := models.RequiredTrackMatch{Requested: req}

		if ctx.Err() == nil && strings.TrimSpace(req.SongTitle) != "" {
			tracks, err := c.SearchTrack(ctx, RequiredTrackQuery(req.SongTitle, artistName), market, accessToken, c.searchLimit)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("song", req.SongTitle).
					Msg("Required track search failed")
			} else if len(tracks) > 0 {
				found := tracks[0]
				match.Found = &found
			}
		}

		matches = append(matches, match)
	}

	if err := ctx.Err(); err != nil {
		return matches, err
	}
	return matches, nil
}

// FetchArtistCatalog collects the top tracks, then walks the artist's albums
// page by page until desiredCount unique tracks are gathered or the pages run out.
// Failed album pages stop enumeration; failed album track listings are skipped.
func (c *Client) FetchArtistCatalog(ctx context.Context, artistID, market, accessToken string, desiredCount int) ([]models.CatalogTrack, error) {
	if desiredCount <= 0 {
		desiredCount = 50
	}

	top, err := c.GetTopTracks(ctx, artistID, market, accessToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Str("artist_id", artistID).Msg("Top tracks unavailable for catalog")
	}

	catalog := models.MergeTracks(top)
	seen := make(map[string]struct{}, len(catalog))
	for _, t := range catalog {
		seen[t.ID] = struct{}{}
	}

	offset := 0
	for len(catalog) < desiredCount && offset <= maxAlbumOffset {
		albums, err := c.ListAlbums(ctx, artistID, market, accessToken, albumPageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return truncate(catalog, desiredCount), ctx.Err()
			}
			c.logger.Warn().Err(err).Int("offset", offset).Msg("Album page failed, stopping enumeration")
			break
		}
		if len(albums) == 0 {
			break
		}

		for _, album := range albums {
			if len(catalog) >= desiredCount {
				break
			}
			tracks, err := c.GetAlbumTracks(ctx, album, market, accessToken)
			if err != nil {
				if ctx.Err() != nil {
					return truncate(catalog, desiredCount), ctx.Err()
				}
				c.logger.Debug().Err(err).Str("album", album.Name).Msg("Skipping album")
				continue
			}
			for _, t := range tracks {
				if t.ID == "" {
					continue
				}
				if _, dup := seen[t.ID]; dup {
					continue
				}
				seen[t.ID] = struct{}{}
				catalog = append(catalog, t)
			}
		}

		if len(albums) < albumPageSize {
			break
		}
		offset += albumPageSize
	}

	c.logger.Debug().
		Str("artist_id", artistID).
		Int("tracks", len(catalog)).
		Int("desired", desiredCount).
		Msg("Artist catalog fetched")

	return truncate(catalog, desiredCount), nil
}

func truncate(tracks []models.CatalogTrack, n int) []models.CatalogTrack {
	if len(tracks) > n {
		return tracks[:n]
	}
	return tracks
}

func marketOrDefault(market string) string {
	if market == "" {
		return "US"
	}
	return market
}
