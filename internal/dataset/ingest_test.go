package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `price,sqft,neighborhood
250000,1400,riverside
310000,1850,hilltop
198000,,riverside
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeArchive(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReaderFor(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{path: "houses.csv"},
		{path: "houses.tsv"},
		{path: "houses.json"},
		{path: "archive.zip"},
		{path: "houses.parquet", wantErr: true},
		{path: "houses", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, err := ReaderFor(tt.path, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "houses.csv", sampleCSV)
	ds, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumRows())

	sqft, err := ds.Column("sqft")
	require.NoError(t, err)
	assert.Equal(t, 1, sqft.MissingCount())
}

func TestLoadCSVEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadJSON(t *testing.T) {
	content := `[
		{"price": 250000, "sqft": 1400, "neighborhood": "riverside"},
		{"price": 310000, "neighborhood": "hilltop"}
	]`
	path := writeFile(t, "houses.json", content)
	ds, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())
	assert.Equal(t, []string{"neighborhood", "price", "sqft"}, ds.ColumnNames())

	sqft, err := ds.Column("sqft")
	require.NoError(t, err)
	assert.True(t, sqft.Missing[1])
}

func TestLoadJSONRejectsNested(t *testing.T) {
	path := writeFile(t, "houses.json", `[{"price": 1, "loc": {"lat": 2}}]`)
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested")
}

func TestArchiveSingleMember(t *testing.T) {
	path := writeArchive(t, map[string]string{"houses.csv": sampleCSV})
	ds, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumRows())
}

func TestArchiveMultipleMembersRequireName(t *testing.T) {
	path := writeArchive(t, map[string]string{
		"houses.csv":  sampleCSV,
		"extras.json": `[{"price": 1}]`,
		"readme.txt":  "not tabular",
	})

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple supported files")
	assert.Contains(t, err.Error(), "houses.csv")

	ds, err := NewArchiveReader("houses.csv", nil).Read(path)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumRows())

	_, err = NewArchiveReader("missing.csv", nil).Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestArchiveNoSupportedMember(t *testing.T) {
	path := writeArchive(t, map[string]string{"readme.txt": "nope"})
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported file")
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := writeFile(t, "houses.csv", sampleCSV)
	ds, err := Load(src, nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out", "snapshot.csv")
	require.NoError(t, ds.WriteCSV(out))

	back, err := Load(out, nil)
	require.NoError(t, err)
	assert.Equal(t, ds.NumRows(), back.NumRows())
	assert.Equal(t, ds.ColumnNames(), back.ColumnNames())

	sqft, err := back.Column("sqft")
	require.NoError(t, err)
	assert.True(t, sqft.Missing[2])
}
