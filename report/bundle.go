package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/warp/obligation-engine/finance"
)

// ReportFile is the markdown file written next to the CSV tables.
const ReportFile = "report.md"

// WriteBundle writes every table as <name>.csv plus report.md into dir,
// creating it if needed. Returns the written paths, sorted.
func WriteBundle(dir, title string, r *finance.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, t := range Tables(r) {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeTableFile(path, t); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, []byte(Markdown(title, r)), 0o644); err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	written = append(written, path)

	sort.Strings(written)
	return written, nil
}

func writeTableFile(path string, t Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := WriteCSV(f, t); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
