//go:build integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ligustah/turbodl/internal/config"
	"github.com/ligustah/turbodl/internal/testutils"
)

// TestCLIDownloadEndToEnd exercises runDownload, the function the download
// subcommand's RunE hands its resolved config to (flag parsing and config
// merging are not exercised), against a real HTTP server, verifying the destination file matches the
// fixture exactly and that no manifest is left behind on success.
func TestCLIDownloadEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testFile := testutils.TestFile{Name: "fixture.bin", Size: 3*1024*1024 + 17}
	testFile.Data = testutils.GenerateTestData(t, testFile.Size)

	server := testutils.StartTestHTTPServer(t, []testutils.TestFile{testFile})
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "downloaded.bin")
	cfg := config.Default()
	cfg.URL = server.URL + "/" + testFile.Name
	cfg.DestFile = dest
	cfg.ChunkSize = 256 * 1024
	cfg.Concurrency = 4
	cfg.Progress = false

	if err := runDownload(cfg); err != nil {
		t.Fatalf("runDownload: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if !bytes.Equal(got, testFile.Data) {
		t.Fatalf("downloaded data mismatch: got %d bytes, want %d bytes", len(got), len(testFile.Data))
	}
	if _, err := os.Stat(dest + ".turbodownload"); !os.IsNotExist(err) {
		t.Fatalf("expected manifest to be cleaned up after success, stat err = %v", err)
	}
}
