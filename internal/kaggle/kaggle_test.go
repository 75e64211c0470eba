package kaggle_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/kaggle"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func newClient(t *testing.T, h http.Handler) *kaggle.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return kaggle.NewClient(
		kaggle.Credentials{Username: "golfer", Key: "secret"},
		quietLogger(),
		kaggle.WithBaseURL(srv.URL+"/api/v1"),
		kaggle.WithHTTPClient(srv.Client()),
		kaggle.WithBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		}),
	)
}

func TestDownloadDataset(t *testing.T) {
	t.Parallel()

	archive := zipBytes(t, map[string]string{
		"pgaTourData.csv": "Player Name,Year\nTiger Woods,2018\n",
		"extra/notes.txt": "hello",
	})
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/datasets/download/jmpark746/pga-tour-data-2010-2018" {
			http.NotFound(w, r)
			return
		}
		if user, key, ok := r.BasicAuth(); !ok || user != "golfer" || key != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != kaggle.UserAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write(archive)
	}))

	dest := filepath.Join(t.TempDir(), "pga_tour_alternative")
	dl, err := client.DownloadDataset(t.Context(), kaggle.Ref{Owner: "jmpark746", Slug: "pga-tour-data-2010-2018"}, dest)
	if err != nil {
		t.Fatalf("DownloadDataset: %v", err)
	}
	if len(dl.Files) != 2 {
		t.Fatalf("files = %+v", dl.Files)
	}
	b, err := os.ReadFile(filepath.Join(dest, "pgaTourData.csv"))
	if err != nil {
		t.Fatalf("read extracted: %v", err)
	}
	if !strings.HasPrefix(string(b), "Player Name") {
		t.Errorf("content = %q", b)
	}
	if _, err := os.Stat(filepath.Join(dest, "extra", "notes.txt")); err != nil {
		t.Errorf("nested file: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dest, ".download-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestDownloadDatasetRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   error
		succeeds  bool
	}{
		{"service unavailable is retried", http.StatusServiceUnavailable, 3, nil, true},
		{"rate limit is retried", http.StatusTooManyRequests, 3, nil, true},
		{"not found is permanent", http.StatusNotFound, 1, kaggle.ErrNotFound, false},
		{"unauthorized is permanent", http.StatusUnauthorized, 1, kaggle.ErrUnauthorized, false},
		{"bad request is permanent", http.StatusBadRequest, 1, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			archive := zipBytes(t, map[string]string{"a.csv": "x\n"})
			var calls atomic.Int32
			client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) < 3 || !tt.succeeds {
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, `{"code":0,"message":"try later"}`)
					return
				}
				_, _ = w.Write(archive)
			}))

			_, err := client.DownloadDataset(t.Context(), kaggle.Ref{Owner: "o", Slug: "s"}, t.TempDir())
			if tt.succeeds && err != nil {
				t.Fatalf("DownloadDataset: %v", err)
			}
			if !tt.succeeds && err == nil {
				t.Fatal("DownloadDataset succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestDownloadDatasetRejectsZipSlip(t *testing.T) {
	t.Parallel()

	archive := zipBytes(t, map[string]string{"../escape.csv": "x\n"})
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))

	root := t.TempDir()
	dest := filepath.Join(root, "data")
	if _, err := client.DownloadDataset(t.Context(), kaggle.Ref{Owner: "o", Slug: "s"}, dest); err == nil {
		t.Fatal("DownloadDataset accepted a path outside the destination")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.csv")); !os.IsNotExist(err) {
		t.Errorf("escape.csv written outside destination: %v", err)
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/datasets/view/bradklassen/pga-tour-20102018-data" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":404,"message":"not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ref":"bradklassen/pga-tour-20102018-data","title":"PGA Tour Data","totalBytes":2048}`)
	}))

	info, err := client.Info(t.Context(), kaggle.Ref{Owner: "bradklassen", Slug: "pga-tour-20102018-data"})
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Title != "PGA Tour Data" || info.TotalBytes != 2048 {
		t.Errorf("info = %+v", info)
	}

	if _, err := client.Info(t.Context(), kaggle.Ref{Owner: "x", Slug: "y"}); !errors.Is(err, kaggle.ErrNotFound) {
		t.Errorf("Info(missing) = %v, want ErrNotFound", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	// t.Setenv forbids t.Parallel.
	dir := t.TempDir()
	t.Setenv("KAGGLE_CONFIG_DIR", dir)

	if c, err := kaggle.LoadCredentials("env-user", "env-key"); err != nil || c.Username != "env-user" {
		t.Errorf("explicit credentials = %+v, %v", c, err)
	}
	if _, err := kaggle.LoadCredentials("", ""); !errors.Is(err, kaggle.ErrNoCredentials) {
		t.Errorf("missing kaggle.json = %v, want ErrNoCredentials", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "kaggle.json"), []byte(`{"username":"file-user","key":"file-key"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := kaggle.LoadCredentials("", "")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if c.Username != "file-user" || c.Key != "file-key" {
		t.Errorf("credentials = %+v", c)
	}
}

func TestParseDataset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		ref     string
		name    string
		wantErr bool
	}{
		{"bradklassen/pga-tour-20102018-data=pga_tour_2010_2018", "bradklassen/pga-tour-20102018-data", "pga_tour_2010_2018", false},
		{"owner/slug", "owner/slug", "slug", false},
		{"owner/slug=../up", "", "", true},
		{"noslash", "", "", true},
		{"a/b/c", "", "", true},
	}
	for _, tt := range tests {
		ds, err := kaggle.ParseDataset(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDataset(%q) succeeded", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDataset(%q): %v", tt.in, err)
			continue
		}
		if ds.Ref.String() != tt.ref || ds.Name != tt.name {
			t.Errorf("ParseDataset(%q) = %+v", tt.in, ds)
		}
	}
}

func TestDownloadAll(t *testing.T) {
	t.Parallel()

	archive := zipBytes(t, map[string]string{"data.csv": "a,b\n1,2\n"})
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/broken/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))

	datasets := []kaggle.Dataset{
		{Ref: kaggle.Ref{Owner: "good", Slug: "one"}, Name: "shared"},
		{Ref: kaggle.Ref{Owner: "broken", Slug: "two"}, Name: "other"},
		{Ref: kaggle.Ref{Owner: "good", Slug: "three"}, Name: "shared"},
	}
	dataDir := t.TempDir()
	outcomes := kaggle.NewDownloader(client, quietLogger()).DownloadAll(t.Context(), datasets, dataDir)

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if got := kaggle.Succeeded(outcomes); got != 2 {
		t.Errorf("Succeeded = %d, want 2", got)
	}
	if outcomes[1].Err == nil || outcomes[1].Dataset.Ref.Owner != "broken" {
		t.Errorf("outcome[1] = %+v", outcomes[1])
	}

	path, err := kaggle.WriteReport(dataDir, time.Date(2024, 4, 14, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	report := string(b)
	for _, want := range []string{
		"# Golf Data Download Report",
		"Generated: 2024-04-14 18:00:00",
		"### shared",
		"- **CSV Files**: 1",
		"  - `data.csv` (0.0 MB)",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "### other") && !strings.Contains(report, "- **Total Files**: 0") {
		t.Errorf("failed dataset listed with files:\n%s", report)
	}
}

func TestRecommendedDatasets(t *testing.T) {
	t.Parallel()

	ds := kaggle.RecommendedDatasets()
	if len(ds) != 3 || ds[0].Name != "pga_tour_2010_2018" || ds[2].Ref.Slug != "pga-tour-golf-data-20152022" {
		t.Errorf("RecommendedDatasets = %+v", ds)
	}
}
