package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultAccountsURL = "https://accounts.spotify.com"
	DefaultAPIURL      = "https://api.spotify.com/v1"

	// tokens are refreshed this long before Spotify says they expire
	expiryMargin = 30 * time.Second
	maxLimit     = 50
)

var ErrMissingCredentials = errors.New("spotify: client id and secret are required")

type Config struct {
	ClientID     string
	ClientSecret string
	AccountsURL  string
	APIURL       string
	HTTPClient   *http.Client
	Clock        func() time.Time
}

// Client talks to the Spotify Web API with an app-only token obtained
// through the client-credentials flow.
type Client struct {
	clientID     string
	clientSecret string
	accountsURL  string
	apiURL       string
	httpClient   *http.Client
	clock        func() time.Time

	mu    sync.Mutex
	token *TokenResponse
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	ExpiresAt   time.Time
}

type Track struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Artists  []Artist `json:"artists"`
	Duration int      `json:"duration_ms"`
	Album    Album    `json:"album"`
}

// ArtistNames joins the credited artists the way Spotify displays them.
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		names = append(names, artist.Name)
	}
	return strings.Join(names, ", ")
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type SearchResponse struct {
	Tracks struct {
		Items []Track `json:"items"`
	} `json:"tracks"`
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	accountsURL := cfg.AccountsURL
	if accountsURL == "" {
		accountsURL = DefaultAccountsURL
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		accountsURL:  strings.TrimRight(accountsURL, "/"),
		apiURL:       strings.TrimRight(apiURL, "/"),
		httpClient:   httpClient,
		clock:        clock,
	}, nil
}

// accessToken returns the cached app token, fetching a new one when it is
// missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.clock().Before(c.token.ExpiresAt.Add(-expiryMargin)) {
		return c.token.AccessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	token, err := c.doTokenRequest(ctx, data)
	if err != nil {
		return "", err
	}
	c.token = token
	return token.AccessToken, nil
}

func (c *Client) doTokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL+"/api/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Add("Authorization", "Basic "+auth)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify: token request failed with status %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("spotify: token response without access token")
	}
	token.ExpiresAt = c.clock().Add(time.Duration(token.ExpiresIn) * time.Second)
	return &token, nil
}

// SearchTracks runs a track search. limit is clamped to 1..50.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	accessToken, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("type", "track")
	params.Add("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = nil
		c.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify: search request failed with status %d", resp.StatusCode)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, err
	}

	return searchResp.Tracks.Items, nil
}
