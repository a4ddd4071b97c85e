package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	RunID   string    `json:"runID"`
	Started time.Time `json:"started"`
	Files   []string  `json:"files"`
	Counts  map[string]int64
}

func TestWriteAndRead(t *testing.T) {
	want := sample{
		RunID:   "run-1234",
		Started: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Files:   []string{"a.txt", "sub/b.txt"},
		Counts:  map[string]int64{"copied": 2, "deleted": 0},
	}

	for _, name := range []string{"report.json", "report.json.gz", "report.json.zst", "nested/dir/report.JSON.GZ"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Write(path, want))

			var got sample
			require.NoError(t, Read(path, &got))
			assert.Equal(t, want.RunID, got.RunID)
			assert.True(t, want.Started.Equal(got.Started))
			assert.Equal(t, want.Files, got.Files)
			assert.Equal(t, want.Counts, got.Counts)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary file must not be left behind")
		})
	}
}

func TestWrite_CompressedIsNotPlainJSON(t *testing.T) {
	dir := t.TempDir()
	v := map[string]string{"key": "value"}

	plain := filepath.Join(dir, "r.json")
	gz := filepath.Join(dir, "r.json.gz")
	zst := filepath.Join(dir, "r.json.zst")
	require.NoError(t, Write(plain, v))
	require.NoError(t, Write(gz, v))
	require.NoError(t, Write(zst, v))

	plainBytes, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), plainBytes[0])

	gzBytes, err := os.ReadFile(gz)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, gzBytes[:2])

	zstBytes, err := os.ReadFile(zst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, zstBytes[:4])
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()

	var v sample
	err := Read(filepath.Join(dir, "missing.json"), &v)
	assert.True(t, os.IsNotExist(err))

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0644))
	assert.ErrorContains(t, Read(corrupt, &v), "may be corrupt")

	notGzip := filepath.Join(dir, "plain.json.gz")
	require.NoError(t, os.WriteFile(notGzip, []byte(`{"runID":"x"}`), 0644))
	assert.Error(t, Read(notGzip, &v))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, JSON, FormatFromPath("/tmp/report.json"))
	assert.Equal(t, JSON, FormatFromPath("report"))
	assert.Equal(t, JSONGzip, FormatFromPath("report.json.gz"))
	assert.Equal(t, JSONZstd, FormatFromPath("REPORT.ZST"))

	f, err := ParseFormat("json.zst")
	require.NoError(t, err)
	assert.Equal(t, JSONZstd, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, "unknown_report_format(xml)", Format("xml").String())
}
