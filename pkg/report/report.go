// Package report writes and reads run reports as JSON, optionally compressed
// with gzip or zstd depending on the file extension.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// Write encodes v into path. The file is written to a temporary sibling and
// renamed into place, so readers never see a partial report.
func Write(path string, v any) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".pgl-sync-report-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if err != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	bufWriter := bufio.NewWriter(tempFile)
	var (
		out        io.Writer = bufWriter
		compressed io.Closer
	)
	switch FormatFromPath(path) {
	case JSONGzip:
		gz := pgzip.NewWriter(bufWriter)
		out, compressed = gz, gz
	case JSONZstd:
		zw, zErr := zstd.NewWriter(bufWriter)
		if zErr != nil {
			return fmt.Errorf("failed to create zstd writer: %w", zErr)
		}
		out, compressed = zw, zw
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not encode report: %w", err)
	}

	// Compressor, then buffer, then file.
	if compressed != nil {
		if err := compressed.Close(); err != nil {
			return fmt.Errorf("compressor close failed: %w", err)
		}
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("buffer flush failed: %w", err)
	}
	if err := tempFile.Chmod(util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("temp file close failed: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to move report into place at %s: %w", path, err)
	}
	return nil
}

// Read decodes the report at path into v.
func Read(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	switch FormatFromPath(path) {
	case JSONGzip:
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("could not open gzip report %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case JSONZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("could not open zstd report %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("could not parse report %s: %w. It may be corrupt", path, err)
	}
	return nil
}
