// Package support holds the godog step definitions of the API suite.
package support

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/server"
	"github.com/MeKo-Tech/teavision/internal/store"
	"github.com/MeKo-Tech/teavision/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string
	Store   *store.SQLiteStore

	APIServer  *server.Server
	HTTPServer *httptest.Server

	// Headers are sent with every following request.
	Headers map[string]string

	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a scenario context with a fresh temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "teavision-api-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{TempDir: tempDir, Headers: map[string]string{}}, nil
}

// StartServer opens a store and serves the API from an httptest server.
func (testCtx *TestContext) StartServer(withModels bool, cfg server.Config) error {
	if testCtx.HTTPServer != nil {
		return nil
	}
	db, err := store.Open(context.Background(), filepath.Join(testCtx.TempDir, "teavision.db"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	testCtx.Store = db

	var classifier *classify.Adapter
	if withModels {
		reg, err := testutil.ToyRegistry()
		if err != nil {
			return err
		}
		classifier = classify.NewAdapter(reg, nil)
	}

	cfg.UploadDir = filepath.Join(testCtx.TempDir, "uploads")
	if cfg.CropSeed == 0 {
		cfg.CropSeed = 11
	}
	testCtx.APIServer, err = server.NewServer(cfg, server.Deps{Store: db, Classifier: classifier})
	if err != nil {
		return err
	}
	testCtx.HTTPServer = httptest.NewServer(testCtx.APIServer.Handler())
	return nil
}

// GetServerURL returns the base URL of the running server.
func (testCtx *TestContext) GetServerURL() string {
	return testCtx.HTTPServer.URL
}

// Cleanup stops the server and removes all temporary files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.APIServer != nil {
		if err := testCtx.APIServer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if testCtx.Store != nil {
		if err := testCtx.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
