package kaggle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SubDir is where datasets land below the data directory.
const SubDir = "kaggle"

const maxParallel = 2

// Dataset pairs a Kaggle reference with the local directory name.
type Dataset struct {
	Ref         Ref
	Name        string
	Description string
}

// RecommendedDatasets are the PGA Tour datasets the loader understands.
// Two of them share a directory; the later one fills in missing files.
func RecommendedDatasets() []Dataset {
	return []Dataset{
		{Ref{"bradklassen", "pga-tour-20102018-data"}, "pga_tour_2010_2018", "Main PGA Tour dataset with comprehensive statistics"},
		{Ref{"jmpark746", "pga-tour-data-2010-2018"}, "pga_tour_alternative", "Alternative PGA Tour dataset for comparison"},
		{Ref{"robikscube", "pga-tour-golf-data-20152022"}, "pga_tour_alternative", "PGA Tour dataset 2015-2022 with detailed statistics"},
	}
}

// ParseDataset reads "owner/slug=name"; without "=name" the slug is used.
func ParseDataset(s string) (Dataset, error) {
	refText, name, _ := strings.Cut(s, "=")
	ref, err := ParseRef(refText)
	if err != nil {
		return Dataset{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = ref.Slug
	}
	if !filepath.IsLocal(name) {
		return Dataset{}, fmt.Errorf("invalid dataset directory %q", name)
	}
	return Dataset{Ref: ref, Name: name}, nil
}

// Outcome is the result for one dataset.
type Outcome struct {
	Dataset  Dataset
	Download *Download
	Err      error
}

// Downloader fetches several datasets into dataDir/kaggle.
type Downloader struct {
	client *Client
	log    logrus.FieldLogger
}

func NewDownloader(c *Client, log logrus.FieldLogger) *Downloader {
	return &Downloader{client: c, log: log}
}

// DownloadAll downloads datasets with bounded concurrency. A failing
// dataset does not stop the others; outcomes keep the input order.
// Datasets sharing a directory are fetched one after another.
func (d *Downloader) DownloadAll(ctx context.Context, datasets []Dataset, dataDir string) []Outcome {
	outcomes := make([]Outcome, len(datasets))
	byDir := map[string][]int{}
	var dirs []string
	for i, ds := range datasets {
		outcomes[i].Dataset = ds
		if _, ok := byDir[ds.Name]; !ok {
			dirs = append(dirs, ds.Name)
		}
		byDir[ds.Name] = append(byDir[ds.Name], i)
	}

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for _, dir := range dirs {
		idx := byDir[dir]
		g.Go(func() error {
			for _, i := range idx {
				ds := datasets[i]
				dest := filepath.Join(dataDir, SubDir, ds.Name)
				dl, err := d.client.DownloadDataset(ctx, ds.Ref, dest)
				if err != nil {
					d.log.WithError(err).WithField("dataset", ds.Ref.String()).Error("download failed")
				}
				outcomes[i] = Outcome{Dataset: ds, Download: dl, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Succeeded counts outcomes without an error.
func Succeeded(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// WriteReport scans dataDir/kaggle and writes dataDir/download_report.md.
func WriteReport(dataDir string, now time.Time) (string, error) {
	path := filepath.Join(dataDir, "download_report.md")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating download report: %w", err)
	}
	if err := writeReport(f, filepath.Join(dataDir, SubDir), now); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing download report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing download report: %w", err)
	}
	return path, nil
}

func writeReport(w io.Writer, root string, now time.Time) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }

	p("# Golf Data Download Report\nGenerated: %s\n\n## Downloaded Datasets\n\n", now.Format("2006-01-02 15:04:05"))

	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		return err //nolint:wrapcheck // wrapped by caller
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return err //nolint:wrapcheck // wrapped by caller
		}
		type csvFile struct {
			name string
			size int64
		}
		var csvs []csvFile
		for _, f := range files {
			if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".csv") {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return err //nolint:wrapcheck // wrapped by caller
			}
			csvs = append(csvs, csvFile{f.Name(), info.Size()})
		}
		sort.Slice(csvs, func(i, j int) bool { return csvs[i].name < csvs[j].name })

		p("### %s\n", e.Name())
		p("- **Location**: `%s`\n", dir)
		p("- **Total Files**: %d\n", len(files))
		p("- **CSV Files**: %d\n", len(csvs))
		for _, c := range csvs {
			p("  - `%s` (%.1f MB)\n", c.name, float64(c.size)/(1024*1024))
		}
		p("\n")
	}

	p("## Next Steps\n\n")
	p("1. Create the schema: `golfstats setup`\n")
	p("2. Load the CSV files: `golfstats load --report`\n")
	p("3. Merge duplicate courses if needed: `golfstats dedupe --dry-run`\n")
	return bw.Flush() //nolint:wrapcheck // wrapped by caller
}
