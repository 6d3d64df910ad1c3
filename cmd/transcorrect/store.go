package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/transcorrect/internal/config"
	"github.com/MrWong99/transcorrect/internal/correction"
	"github.com/MrWong99/transcorrect/internal/correction/postgres"
	"github.com/MrWong99/transcorrect/internal/document"
)

// openStore returns the configured block repository and a function that
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (correction.Repository, func(), error) {
	if cfg.Storage.PostgresDSN == "" {
		slog.Debug("using in-memory block store")
		return correction.NewMemStore(), func() {}, nil
	}
	s, err := postgres.Connect(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// storedResult returns the result for fileID from resultsPath when given,
// otherwise from the configured store.
func (c *cli) storedResult(ctx context.Context, fileID, resultsPath string) (*correction.FileResult, error) {
	if resultsPath != "" {
		return readResults(resultsPath)
	}
	if fileID == "" {
		return nil, fmt.Errorf("--file-id or --results is required")
	}
	if c.cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("no stored results for %q: storage.postgres_dsn is not configured; pass --results instead", fileID)
	}
	repo, closeRepo, err := openStore(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	defer closeRepo()

	res, err := correction.New(nil, repo).Load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("no stored results for %q", fileID)
	}
	return res, nil
}

func readResults(path string) (*correction.FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res correction.FileResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse results %q: %w", path, err)
	}
	return &res, nil
}

func writeResults(path string, res *correction.FileResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readDocument(path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(path string, doc *document.Document) error {
	data, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// fileIDFromPath derives a file ID from the base name of path without its
// extension.
func fileIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
