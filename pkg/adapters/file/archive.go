// Package file stores recorded reports as JSON files on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/vitrine/pkg/adapters/memory"
	"github.com/aretw0/vitrine/pkg/domain"
)

// Archive implements ports.ReportArchive with one JSON file per report
// in a configured directory.
type Archive struct {
	BasePath string
}

// New creates an Archive rooted at basePath.
// If basePath is empty, it defaults to ".vitrine/reports".
func New(basePath string) *Archive {
	if basePath == "" {
		basePath = filepath.Join(".vitrine", "reports")
	}
	return &Archive{BasePath: basePath}
}

func (a *Archive) path(id domain.ReportID) (string, error) {
	name := string(id)
	if name == "" || name == string(domain.NoReport) {
		return "", fmt.Errorf("invalid report id %q", name)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("report id %q is not a valid file name", name)
	}
	return filepath.Join(a.BasePath, name+".json"), nil
}

// Save writes the recording atomically: temp file, fsync, rename.
func (a *Archive) Save(ctx context.Context, rec *domain.Recording) error {
	destPath, err := a.path(rec.ReportID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure report directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(a.BasePath, "tmp-"+string(rec.ReportID)+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename fails on Windows when the destination exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing report for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to report: %w", err)
	}
	return nil
}

// Load reads a recording back.
func (a *Archive) Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	filePath, err := a.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var rec domain.Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes the report file.
func (a *Archive) Delete(ctx context.Context, id domain.ReportID) error {
	filePath, err := a.path(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report file: %w", err)
	}
	return nil
}

// List loads every report in the directory and returns its summary.
// Files that fail to decode are skipped and reported in the joined error
// alongside the summaries that did load.
func (a *Archive) List(ctx context.Context) ([]domain.ReportSummary, error) {
	entries, err := os.ReadDir(a.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ReportSummary{}, nil
		}
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var (
		summaries []domain.ReportSummary
		errs      []error
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		rec, err := a.Load(ctx, domain.ReportID(strings.TrimSuffix(name, ".json")))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, rec.Summary())
	}
	memory.SortSummaries(summaries)
	return summaries, errors.Join(errs...)
}
