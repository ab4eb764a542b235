// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// Spotify request size limits.
const (
	maxSavedAlbumIDs   = 20
	maxFollowIDs       = 50
	maxPlaylistURIs    = 100
	playlistPageLimit  = 50
	defaultRedirectURI = "http://127.0.0.1:3000/callback"
)

// SpotifyScopes is the OAuth scope set the reconciliation commands need. A cached token
// issued for a different set is discarded.
var SpotifyScopes = []string{
	"user-library-read",
	"user-library-modify",
	"playlist-modify-private",
	"playlist-read-private",
	"playlist-modify-public",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Owner  Owner  `json:"owner"`
	Public bool   `json:"public"`
	URI    string `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

type searchItem struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type searchPage struct {
	Items []searchItem `json:"items"`
}

// SpotifySearchResponse holds whichever result page matches the requested type.
type SpotifySearchResponse struct {
	Albums  *searchPage `json:"albums"`
	Artists *searchPage `json:"artists"`
	Tracks  *searchPage `json:"tracks"`
}

func (r SpotifySearchResponse) page(kind SearchKind) *searchPage {
	switch kind {
	case SearchAlbum:
		return r.Albums
	case SearchArtist:
		return r.Artists
	case SearchTrack:
		return r.Tracks
	}
	return nil
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithRequestsPerSecond throttles outgoing requests. Zero or less disables throttling.
func WithRequestsPerSecond(rps float64) SpotifyOption {
	return func(s *SpotifyService) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithSpotifyLogger sets the logger used for request tracing.
func WithSpotifyLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = l }
}

// SpotifyService implements [Catalog] for the Spotify Web API.
// Uses [oauth2] for authentication; the token source refreshes expired access tokens.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	tokens     oauth2.TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	baseURL    string
	userID     string

	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Recognized keys are client_id, client_secret, redirect_uri and username.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		logger:     shared.DiscardLogger(),
		baseURL:    spotifyBaseURL,
		userID:     credentials["username"],
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Scope is the space separated scope string stored alongside cached tokens.
func (s *SpotifyService) Scope() string {
	return strings.Join(s.config.Scopes, " ")
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and authenticates the client with it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.SetToken(ctx, token)
	return token, nil
}

// Authenticate accepts either an "access_token" or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.SetToken(ctx, &oauth2.Token{AccessToken: accessToken, RefreshToken: credentials["refresh_token"]})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		_, err := s.Exchange(ctx, authCode)
		return err
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// SetToken installs token and builds a refreshing HTTP client around it.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.tokens = &refreshableTokenSource{
		source: s.config.TokenSource(ctx, token),
		callback: func(t *oauth2.Token) {
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(t)
			}
		},
		last: token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
}

// SetTokenRefreshCallback registers fn to be called whenever the access token changes.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// refreshableTokenSource reports every new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != r.last {
		r.last = token.AccessToken
		if r.callback != nil {
			r.callback(token)
		}
	}
	return token, nil
}

// Token returns the current token, refreshed if it had expired. Callers persist it so the
// refresh survives the process.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
// body is JSON encoded when non-nil; result is decoded when non-nil.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.logger.Debug("spotify request", "method", method, "endpoint", endpoint)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("spotify", resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	if s.userID != "" {
		return s.userID, nil
	}
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}
	s.userID = user.ID
	return s.userID, nil
}

// Search queries the catalog for a single entity type.
func (s *SpotifyService) Search(ctx context.Context, query string, kind SearchKind, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 1
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", string(kind))
	params.Set("limit", fmt.Sprint(limit))

	var response SpotifySearchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	page := response.page(kind)
	if page == nil {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(page.Items))
	for _, item := range page.Items {
		results = append(results, SearchResult{URI: item.URI, Name: item.Name})
	}
	return results, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > playlistPageLimit {
		limit = playlistPageLimit
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// FindPlaylistByName walks the user's playlists and returns the first exact name match
// owned by the current user. Followed playlists are skipped since they cannot be written.
func (s *SpotifyService) FindPlaylistByName(ctx context.Context, name string) (*RemotePlaylist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	offset := 0
	for {
		response, err := s.UserPlaylists(ctx, playlistPageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			if sp.Name == name && sp.Owner.ID == userID {
				return &RemotePlaylist{ID: sp.ID, Name: sp.Name, URI: sp.URI}, nil
			}
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
}

// CreatePlaylist creates an empty playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string, public bool) (*RemotePlaylist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"name": name, "public": public}
	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &RemotePlaylist{ID: created.ID, Name: created.Name, URI: created.URI}, nil
}

// ReplacePlaylistTracks overwrites the playlist with uris. Anything past the first 100
// is appended in further requests.
func (s *SpotifyService) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	first := uris[:min(len(uris), maxPlaylistURIs)]
	if err := s.doRequest(ctx, http.MethodPut, endpoint, map[string][]string{"uris": first}, nil); err != nil {
		return err
	}
	return s.AddPlaylistTracks(ctx, playlistID, uris[len(first):])
}

// AddPlaylistTracks appends uris to the playlist.
func (s *SpotifyService) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	for chunk := range slices.Chunk(uris, maxPlaylistURIs) {
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"uris": chunk}, nil); err != nil {
			return err
		}
	}
	return nil
}

// SaveAlbums adds albums to the user's library.
func (s *SpotifyService) SaveAlbums(ctx context.Context, uris []string) error {
	for chunk := range slices.Chunk(uris, maxSavedAlbumIDs) {
		body := map[string][]string{"ids": spotifyIDs(chunk)}
		if err := s.doRequest(ctx, http.MethodPut, "/me/albums", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// FollowArtists follows artists for the current user.
func (s *SpotifyService) FollowArtists(ctx context.Context, uris []string) error {
	for chunk := range slices.Chunk(uris, maxFollowIDs) {
		body := map[string][]string{"ids": spotifyIDs(chunk)}
		if err := s.doRequest(ctx, http.MethodPut, "/me/following?type=artist", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// spotifyIDs strips the "spotify:<type>:" prefix from each URI.
func spotifyIDs(uris []string) []string {
	ids := make([]string, len(uris))
	for i, uri := range uris {
		if idx := strings.LastIndex(uri, ":"); idx >= 0 {
			ids[i] = uri[idx+1:]
		} else {
			ids[i] = uri
		}
	}
	return ids
}
