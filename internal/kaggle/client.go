// Package kaggle downloads public datasets through the Kaggle REST API.
package kaggle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dghubble/sling"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://www.kaggle.com/api/v1/"
	UserAgent      = "golfstats/1.0 (+https://github.com/mickamy/golfstats)"
	Timeout        = 10 * time.Minute
	maxRetries     = 4
)

var (
	ErrNoCredentials = errors.New("kaggle credentials not found: set KAGGLE_USERNAME and KAGGLE_KEY or create ~/.kaggle/kaggle.json")
	ErrUnauthorized  = errors.New("kaggle rejected the credentials")
	ErrNotFound      = errors.New("kaggle dataset not found")
)

// Credentials authenticate against the API with HTTP basic auth.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// LoadCredentials prefers explicit values (normally from the environment)
// and falls back to kaggle.json in $KAGGLE_CONFIG_DIR or ~/.kaggle.
func LoadCredentials(username, key string) (Credentials, error) {
	if username != "" && key != "" {
		return Credentials{Username: username, Key: key}, nil
	}
	dir := os.Getenv("KAGGLE_CONFIG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Credentials{}, ErrNoCredentials
		}
		dir = filepath.Join(home, ".kaggle")
	}
	b, err := os.ReadFile(filepath.Join(dir, "kaggle.json"))
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("reading kaggle.json: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("parsing kaggle.json: %w", err)
	}
	if c.Username == "" || c.Key == "" {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

// Ref is an "owner/slug" dataset reference.
type Ref struct {
	Owner string
	Slug  string
}

func (r Ref) String() string { return r.Owner + "/" + r.Slug }

// ParseRef validates "owner/slug".
func ParseRef(s string) (Ref, error) {
	owner, slug, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || slug == "" || strings.Contains(slug, "/") {
		return Ref{}, fmt.Errorf("invalid dataset reference %q (want owner/slug)", s)
	}
	return Ref{Owner: owner, Slug: slug}, nil
}

// Client talks to the Kaggle API.
type Client struct {
	http       *http.Client
	base       *sling.Sling
	log        logrus.FieldLogger
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests use httptest).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		c.base = c.base.Base(u)
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
		c.base = c.base.Client(h)
	}
}

// WithBackOff replaces the retry policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

func NewClient(creds Credentials, log logrus.FieldLogger, opts ...Option) *Client {
	h := &http.Client{Timeout: Timeout}
	c := &Client{
		http: h,
		base: sling.New().Client(h).Base(DefaultBaseURL).
			SetBasicAuth(creds.Username, creds.Key).
			Set("User-Agent", UserAgent),
		log: log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return backoff.WithMaxRetries(b, maxRetries)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DatasetInfo is the subset of dataset metadata the CLI prints.
type DatasetInfo struct {
	Ref         string `json:"ref"`
	Title       string `json:"title"`
	TotalBytes  int64  `json:"totalBytes"`
	LastUpdated string `json:"lastUpdated"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Info fetches dataset metadata.
func (c *Client) Info(ctx context.Context, ref Ref) (DatasetInfo, error) {
	var info DatasetInfo
	err := c.retry(ctx, ref, func() error {
		req, err := c.base.New().Get(fmt.Sprintf("datasets/view/%s/%s", ref.Owner, ref.Slug)).Request()
		if err != nil {
			return backoff.Permanent(err)
		}
		var apiErr apiError
		resp, err := c.base.New().Do(req.WithContext(ctx), &info, &apiErr)
		if resp == nil {
			return err //nolint:wrapcheck // retried, wrapped by retry
		}
		if cerr := classify(resp.StatusCode, apiErr.Message); cerr != nil {
			return cerr
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("decoding dataset info: %w", err))
		}
		return nil
	})
	return info, err
}

// File is one extracted file.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Download is the result of DownloadDataset.
type Download struct {
	Ref   string `json:"ref"`
	Dir   string `json:"dir"`
	Files []File `json:"files"`
}

// DownloadDataset fetches the dataset archive and unzips it into destDir.
// Network errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) DownloadDataset(ctx context.Context, ref Ref, destDir string) (*Download, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destDir, err)
	}
	tmp, err := os.CreateTemp(destDir, ".download-*.zip")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	err = c.retry(ctx, ref, func() error {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		if err := tmp.Truncate(0); err != nil {
			return backoff.Permanent(err)
		}
		return c.fetch(ctx, ref, tmp)
	})
	if err != nil {
		return nil, err
	}

	files, err := extract(tmp.Name(), destDir)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", ref, err)
	}
	c.log.WithFields(logrus.Fields{"dataset": ref.String(), "files": len(files), "dir": destDir}).Info("dataset downloaded")
	return &Download{Ref: ref.String(), Dir: destDir, Files: files}, nil
}

func (c *Client) fetch(ctx context.Context, ref Ref, w io.Writer) error {
	req, err := c.base.New().Get(fmt.Sprintf("datasets/download/%s/%s", ref.Owner, ref.Slug)).Request()
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return err //nolint:wrapcheck // retried, wrapped by retry
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var apiErr apiError
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return classify(resp.StatusCode, msg)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	return nil
}

// classify maps a status code onto a retryable or permanent error.
func classify(status int, msg string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return backoff.Permanent(ErrUnauthorized)
	case status == http.StatusNotFound:
		return backoff.Permanent(ErrNotFound)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("kaggle returned %d: %s", status, msg)
	default:
		return backoff.Permanent(fmt.Errorf("kaggle returned %d: %s", status, msg))
	}
}

func (c *Client) retry(ctx context.Context, ref Ref, op func() error) error {
	b := backoff.WithContext(c.newBackOff(), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.log.WithError(err).WithFields(logrus.Fields{"dataset": ref.String(), "wait": wait}).Warn("retrying kaggle request")
	})
	if err != nil {
		return fmt.Errorf("kaggle %s: %w", ref, err)
	}
	return nil
}

// extract unzips archive into dir, refusing entries that would land
// outside it.
func extract(archive, dir string) ([]File, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	defer func() { _ = zr.Close() }()

	var files []File
	for _, f := range zr.File {
		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return nil, fmt.Errorf("unsafe path in archive: %q", f.Name)
		}
		target := filepath.Join(dir, name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err //nolint:wrapcheck // wrapped by caller
			}
			continue
		}
		n, err := extractFile(f, target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		files = append(files, File{Name: filepath.ToSlash(name), Size: n})
	}
	return files, nil
}

func extractFile(f *zip.File, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err //nolint:wrapcheck // wrapped by caller
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err //nolint:wrapcheck // wrapped by caller
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return 0, err //nolint:wrapcheck // wrapped by caller
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err //nolint:wrapcheck // wrapped by caller
}
