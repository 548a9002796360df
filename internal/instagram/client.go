// Package instagram is a thin client for the Instagram Graph API: media and
// comment reads, reply posting and the Facebook Login code exchange used to
// connect business accounts.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL  = "https://graph.facebook.com/v18.0"
	facebookAuthURL = "https://www.facebook.com/v18.0/dialog/oauth"
)

// Scopes requested when connecting an Instagram business account.
var Scopes = []string{
	"instagram_basic",
	"instagram_manage_comments",
	"pages_show_list",
	"pages_read_engagement",
}

// Config carries client settings. BaseURL is overridable so tests can point
// the client at a local server.
type Config struct {
	BaseURL     string
	AppID       string
	AppSecret   string
	RedirectURL string
	HTTPClient  *http.Client
}

// Client calls the Graph API. Methods take the access token explicitly
// because every brand account carries its own token.
type Client struct {
	base  string
	http  *http.Client
	oauth oauth2.Config
}

// NewClient constructs a Graph API client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base: base,
		http: hc,
		oauth: oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  facebookAuthURL,
				TokenURL: base + "/oauth/access_token",
			},
		},
	}
}

// AuthCodeURL builds the Facebook Login consent URL carrying the given state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode swaps an authorization code for a user access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// RecentMedia returns the account's recent media with their comments.
func (c *Client) RecentMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	q := url.Values{}
	q.Set("fields", "id,comments{id,text,username,from,timestamp,like_count}")
	q.Set("limit", "25")
	q.Set("access_token", accessToken)

	var out struct {
		Data []Media `json:"data"`
	}
	if err := c.get(ctx, "/"+igUserID+"/media", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// PostReply publishes a reply under the comment with the given native id and
// returns the platform id of the created reply.
func (c *Client) PostReply(ctx context.Context, commentID, accessToken, message string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", accessToken)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "/"+commentID+"/replies", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AccountDetails fetches the profile of an Instagram business account.
func (c *Client) AccountDetails(ctx context.Context, igUserID, accessToken string) (*AccountDetails, error) {
	q := url.Values{}
	q.Set("fields", "username,profile_picture_url")
	q.Set("access_token", accessToken)

	var out AccountDetails
	if err := c.get(ctx, "/"+igUserID, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pages lists the Facebook pages the user manages, including the linked
// Instagram business account where one exists.
func (c *Client) Pages(ctx context.Context, accessToken string) ([]Page, error) {
	q := url.Values{}
	q.Set("fields", "id,name,access_token,instagram_business_account")
	q.Set("access_token", accessToken)

	var out struct {
		Data []Page `json:"data"`
	}
	if err := c.get(ctx, "/me/accounts", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("graph api: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("graph api: decode response: %w", err)
	}
	return nil
}
