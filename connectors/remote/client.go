package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// File is one entry of the remote listing.
type File struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type listResponse struct {
	Files []File `json:"files"`
}

// Options configures a Client. The function key is sent as the "code" query
// parameter. When TokenURL and ClientID are set, listing requests carry an
// OAuth2 client-credentials token.
type Options struct {
	ListURL      string
	FunctionKey  string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Timeout      time.Duration
}

// Client lists and downloads newly dropped input files.
type Client struct {
	listURL    string
	key        string
	apiClient  *http.Client
	httpClient *http.Client
}

// NewClient creates a new remote file client.
func NewClient(ctx context.Context, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	plain := &http.Client{Timeout: timeout}
	api := plain
	if opts.TokenURL != "" && opts.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		if opts.Scope != "" {
			cc.Scopes = []string{opts.Scope}
		}
		api = cc.Client(ctx)
		api.Timeout = timeout
	}
	return &Client{listURL: opts.ListURL, key: opts.FunctionKey, apiClient: api, httpClient: plain}
}

// ListFiles returns the files waiting in the remote drop.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	u, err := url.Parse(c.listURL)
	if err != nil {
		return nil, fmt.Errorf("invalid list url: %w", err)
	}
	if c.key != "" {
		q := u.Query()
		q.Set("code", c.key)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("list request failed: %d %s", resp.StatusCode, string(body))
	}
	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return lr.Files, nil
}

// Download saves f into dir under its base name and returns the local path.
func (c *Client) Download(ctx context.Context, f File, dir string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(f.Filename, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", fmt.Errorf("invalid filename %q", f.Filename)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: %d", name, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Sync downloads every listed file into dir. A failed download is logged and
// skipped; the names of the files saved are returned.
func (c *Client) Sync(ctx context.Context, dir string) ([]string, error) {
	files, err := c.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Info("remote.sync.empty")
		return nil, nil
	}
	var saved []string
	for _, f := range files {
		slog.Info("remote.download", "file", f.Filename)
		path, err := c.Download(ctx, f, dir)
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			slog.Warn("remote.download.failed", "file", f.Filename, "err", err)
			continue
		}
		saved = append(saved, filepath.Base(path))
	}
	return saved, nil
}
