package fallback

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Resource paths exposed by the upstream scraping APIs.
const (
	PathHome          = "home"
	PathAnimeTerbaru  = "anime-terbaru"
	PathMovie         = "movie"
	PathJadwalRilis   = "jadwal-rilis"
	PathAnimeDetail   = "anime-detail"
	PathEpisodeDetail = "episode-detail"
	PathSearch        = "search"
)

// Home fetches the home page data (top 10, new episodes, movies, schedule).
func (c *Client) Home(ctx context.Context) (*Response, error) {
	return c.Request(ctx, PathHome, nil)
}

// AnimeTerbaru fetches the latest-anime listing for a page.
func (c *Client) AnimeTerbaru(ctx context.Context, page int) (*Response, error) {
	return c.Request(ctx, PathAnimeTerbaru, pageParams(page))
}

// MovieList fetches the movie listing for a page.
func (c *Client) MovieList(ctx context.Context, page int) (*Response, error) {
	return c.Request(ctx, PathMovie, pageParams(page))
}

// JadwalRilis fetches the release schedule, optionally for a single day
// ("senin" ... "minggu"); the day becomes a lowercased path segment.
func (c *Client) JadwalRilis(ctx context.Context, day string) (*Response, error) {
	path := PathJadwalRilis
	if day != "" {
		path += "/" + strings.ToLower(day)
	}
	return c.Request(ctx, path, nil)
}

// AnimeDetail fetches the detail page for an anime slug.
func (c *Client) AnimeDetail(ctx context.Context, animeSlug string) (*Response, error) {
	params := url.Values{}
	params.Set("anime_slug", animeSlug)
	return c.Request(ctx, PathAnimeDetail, params)
}

// EpisodeDetail fetches the player/detail data for an episode URL.
func (c *Client) EpisodeDetail(ctx context.Context, episodeURL string) (*Response, error) {
	params := url.Values{}
	params.Set("episode_url", episodeURL)
	return c.Request(ctx, PathEpisodeDetail, params)
}

// Search runs a title search.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.Request(ctx, PathSearch, params)
}

func pageParams(page int) url.Values {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return params
}
