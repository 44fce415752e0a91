package proc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"golang.org/x/time/rate"

	"github.com/leeineian/hibiki/src/sys"
)

const (
	maxCollectionSize = 100
	searchTimeout     = 2600 * time.Millisecond
)

var (
	youtubePlaylistRegex   = regexp.MustCompile(`youtube\.com/(?:playlist\?|watch\?.*list=)`)
	youtubePlaylistIDRegex = regexp.MustCompile(`[?&]list=([a-zA-Z0-9_-]+)`)
	youtubeURLRegex        = regexp.MustCompile(`(?:youtube\.com/watch|youtu\.be/|youtube\.com/shorts/)`)
	youtubeVideoIDRegex    = regexp.MustCompile(`(?:youtube\.com/watch\?.*v=|youtu\.be/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`)
	spotifyURLRegex        = regexp.MustCompile(`open\.spotify\.com/(track|playlist|album)/([a-zA-Z0-9]+)`)
)

// Suggestion is an autocomplete entry.
type Suggestion struct {
	Label string
	Value string
}

// SuggestionSource is implemented by resolvers that can offer autocomplete
// suggestions.
type SuggestionSource interface {
	Suggest(ctx context.Context, query string, limit int) []Suggestion
}

// Resolver turns queries into tracks using yt-dlp for URLs and a parallel
// YouTube / YouTube Music search fan-out for free text. All lookups share a
// rate limiter so autocomplete bursts cannot starve playback resolution.
type Resolver struct {
	limiter *rate.Limiter
	http    *http.Client
	proxy   string
}

func NewResolver(proxy string) *Resolver {
	return &Resolver{
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		http:    &http.Client{Timeout: 10 * time.Second},
		proxy:   proxy,
	}
}

func (r *Resolver) Resolve(ctx context.Context, query string) (*Resolution, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}

	if m := spotifyURLRegex.FindStringSubmatch(query); m != nil {
		kind := m[1]
		if kind == "track" {
			return r.resolveSpotifyTrack(ctx, query)
		}
		return r.resolveSpotifyCollection(ctx, query, kind)
	}

	if youtubePlaylistRegex.MatchString(query) {
		return r.resolveYouTubePlaylist(ctx, query)
	}

	if youtubeURLRegex.MatchString(query) {
		return r.resolveYouTubeVideo(ctx, query)
	}

	return r.resolveSearch(ctx, query)
}

// resolveSpotifyTrack uses the public oembed endpoint, whose title comes as
// "Track by Artist". The Spotify URL itself is never streamed; playback
// later searches for "{title} {artist} audio".
func (r *Resolver) resolveSpotifyTrack(ctx context.Context, trackURL string) (*Resolution, error) {
	title, err := r.spotifyOembedTitle(ctx, trackURL)
	if err != nil {
		sys.LogVoice(sys.MsgMusicResolveFail, trackURL, err)
		return nil, ErrNoResults
	}

	name, artist := title, ""
	if i := strings.LastIndex(title, " by "); i > 0 {
		name = title[:i]
		artist = title[i+len(" by "):]
	}

	return &Resolution{Tracks: []Track{{
		Title:  name,
		Artist: artist,
		URL:    trackURL,
		Source: SourceSpotify,
	}}}, nil
}

// resolveSpotifyCollection cannot enumerate the Spotify catalog without API
// credentials, so it takes the collection name from oembed and plays the
// matching YouTube Music playlist or album instead.
func (r *Resolver) resolveSpotifyCollection(ctx context.Context, collURL, kind string) (*Resolution, error) {
	name, err := r.spotifyOembedTitle(ctx, collURL)
	if err != nil || name == "" {
		sys.LogVoice(sys.MsgMusicResolveFail, collURL, err)
		return nil, ErrNoResults
	}

	searchURL := "https://music.youtube.com/search?q=" + url.QueryEscape(name)
	entries, err := r.flatPlaylist(ctx, searchURL)
	if err != nil || len(entries) == 0 {
		return nil, ErrNoResults
	}

	tracks := make([]Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, Track{
			Title:  e.title,
			Artist: e.uploader,
			URL:    e.url,
			Source: SourceSpotify,
		})
	}
	return &Resolution{Tracks: tracks, Collection: true, CollectionName: name}, nil
}

func (r *Resolver) spotifyOembedTitle(ctx context.Context, spotifyURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://open.spotify.com/oembed?url="+url.QueryEscape(spotifyURL), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed status %d", resp.StatusCode)
	}
	var data struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	return data.Title, nil
}

func (r *Resolver) resolveYouTubePlaylist(ctx context.Context, playlistURL string) (*Resolution, error) {
	if m := youtubePlaylistIDRegex.FindStringSubmatch(playlistURL); m != nil {
		playlistURL = "https://www.youtube.com/playlist?list=" + m[1]
	}
	entries, err := r.flatPlaylist(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoResults
	}

	name := entries[0].playlist
	tracks := make([]Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, Track{
			Title:  e.title,
			Artist: e.uploader,
			URL:    e.url,
			Source: SourceYouTube,
		})
	}
	return &Resolution{Tracks: tracks, Collection: true, CollectionName: name}, nil
}

func (r *Resolver) resolveYouTubeVideo(ctx context.Context, videoURL string) (*Resolution, error) {
	cmd := r.newYtdlp()
	res, err := cmd.
		Print("%(title)s\t%(uploader)s\t%(duration)s\t%(thumbnail)s").
		SkipDownload().
		NoSimulate().
		IgnoreConfig().
		Run(ctx, append(ytdlpArgs(), videoURL)...)
	if err != nil {
		sys.LogVoice(sys.MsgMusicResolveFail, videoURL, err)
		return nil, ErrNoResults
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		t := Track{
			Title:    parts[0],
			Artist:   parts[1],
			URL:      videoURL,
			Source:   SourceYouTube,
			Duration: formatDuration(parts[2]),
		}
		if len(parts) >= 4 {
			t.ThumbnailURL = parts[3]
		}
		return &Resolution{Tracks: []Track{t}}, nil
	}
	return nil, ErrNoResults
}

// resolveSearch races YouTube Music and plain YouTube search and takes the
// best hit, preferring the music catalog.
func (r *Resolver) resolveSearch(ctx context.Context, query string) (*Resolution, error) {
	ytm, yt := r.fanOutSearch(ctx, query)

	var pick *Track
	if len(ytm) > 0 {
		pick = &ytm[0]
	} else if len(yt) > 0 {
		pick = &yt[0]
	}
	if pick == nil {
		return nil, ErrNoResults
	}
	return &Resolution{Tracks: []Track{*pick}}, nil
}

func (r *Resolver) fanOutSearch(ctx context.Context, query string) (ytm, yt []Track) {
	sctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s := ytmusic.TrackSearch(query)
		res, err := s.Next()
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, v := range res.Tracks {
			if v.VideoID == "" {
				continue
			}
			artist := ""
			if len(v.Artists) > 0 {
				artist = v.Artists[0].Name
			}
			ytm = append(ytm, Track{
				Title:    v.Title,
				Artist:   artist,
				URL:      "https://music.youtube.com/watch?v=" + v.VideoID,
				Source:   SourceYouTube,
				Duration: formatSeconds(v.Duration),
			})
		}
	}()

	go func() {
		defer wg.Done()
		c := ytsearch.NewClient(nil)
		res, err := c.Search(sctx, query)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, v := range res.Results {
			yt = append(yt, Track{
				Title:  v.Title,
				Artist: v.Channel,
				URL:    "https://www.youtube.com/watch?v=" + v.VideoID,
				Source: SourceYouTube,
			})
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-sctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	return ytm, yt
}

// Suggest serves autocomplete. Results from both catalogs, music first,
// capped to limit.
func (r *Resolver) Suggest(ctx context.Context, query string, limit int) []Suggestion {
	if !r.limiter.Allow() {
		return nil
	}
	ytm, yt := r.fanOutSearch(ctx, query)

	seen := map[string]bool{}
	var out []Suggestion
	for _, t := range append(ytm, yt...) {
		if seen[t.URL] {
			continue
		}
		seen[t.URL] = true
		label := t.Title
		if t.Artist != "" {
			label += " - " + t.Artist
		}
		if len(label) > 100 {
			label = label[:97] + "..."
		}
		out = append(out, Suggestion{Label: label, Value: t.URL})
		if len(out) >= limit {
			break
		}
	}
	return out
}

type playlistEntry struct {
	url, title, uploader, playlist string
}

func (r *Resolver) flatPlaylist(ctx context.Context, target string) ([]playlistEntry, error) {
	cmd := r.newYtdlp()
	res, err := cmd.
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(playlist_title)s").
		PlaylistItems(fmt.Sprintf("1-%d", maxCollectionSize)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, append(ytdlpArgs(true), target)...)
	if err != nil {
		return nil, err
	}

	var entries []playlistEntry
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 || !strings.HasPrefix(parts[0], "http") {
			continue
		}
		e := playlistEntry{url: parts[0], title: parts[1], uploader: parts[2]}
		if len(parts) >= 4 {
			e.playlist = parts[3]
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, errors.New("empty playlist extraction")
	}
	return entries, nil
}

func (r *Resolver) newYtdlp() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if r.proxy != "" {
		cmd.Proxy(r.proxy)
	}
	return cmd
}

// ytdlpArgs returns the shared extractor tuning flags. Pass true to allow
// playlist expansion.
func ytdlpArgs(playlist ...bool) []string {
	args := []string{
		"--no-check-certificates",
		"--no-warnings",
		"--extractor-args", "youtube:player_client=android,web",
		"--prefer-free-formats",
		"--socket-timeout", "30",
		"--retries", "20",
	}
	if len(playlist) == 0 || !playlist[0] {
		args = append(args, "--no-playlist")
	}
	return args
}

// formatDuration converts yt-dlp's seconds field into m:ss form.
func formatDuration(raw string) string {
	d, err := time.ParseDuration(strings.TrimSpace(raw) + "s")
	if err != nil {
		return ""
	}
	return formatSeconds(int(d.Seconds()))
}

func formatSeconds(secs int) string {
	if secs <= 0 {
		return ""
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
