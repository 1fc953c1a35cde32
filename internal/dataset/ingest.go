package dataset

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Reader ingests a tabular file into a Dataset.
type Reader interface {
	Read(path string) (*Dataset, error)
}

// ReaderFor returns the reader matching the file extension. Supported
// extensions are .csv, .tsv, .json and .zip.
func ReaderFor(path string, logger *slog.Logger) (Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &delimitedReader{comma: ',', logger: logger}, nil
	case ".tsv":
		return &delimitedReader{comma: '\t', logger: logger}, nil
	case ".json":
		return &jsonReader{logger: logger}, nil
	case ".zip":
		return &ArchiveReader{logger: logger}, nil
	default:
		return nil, fmt.Errorf("dataset: no reader for file extension %q", filepath.Ext(path))
	}
}

// Load ingests the file at path using the reader matching its extension.
func Load(path string, logger *slog.Logger) (*Dataset, error) {
	r, err := ReaderFor(path, logger)
	if err != nil {
		return nil, err
	}
	return r.Read(path)
}

type delimitedReader struct {
	comma  rune
	logger *slog.Logger
}

func (r *delimitedReader) Read(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := r.readFrom(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	r.logger.Info("ingested delimited file",
		slog.String("path", path),
		slog.Int("rows", ds.NumRows()),
		slog.Int("columns", ds.NumCols()))
	return ds, nil
}

func (r *delimitedReader) readFrom(src io.Reader) (*Dataset, error) {
	cr := csv.NewReader(src)
	cr.Comma = r.comma
	cr.FieldsPerRecord = -1 // ragged rows reported by FromRecords with a row number

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return FromRecords(records[0], records[1:])
}

type jsonReader struct {
	logger *slog.Logger
}

// Read parses a JSON array of flat objects. Column order is the sorted union
// of keys; objects missing a key get a missing cell.
func (r *jsonReader) Read(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	return r.readBytes(data, path)
}

func (r *jsonReader) readBytes(data []byte, path string) (*Dataset, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("dataset: %s is not a JSON array of objects: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: %s contains no rows", path)
	}

	keySet := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			keySet[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keySet))
	for k := range keySet {
		header = append(header, k)
	}
	sort.Strings(header)

	records := make([][]string, len(rows))
	for i, row := range rows {
		rec := make([]string, len(header))
		for j, k := range header {
			v, ok := row[k]
			if !ok || v == nil {
				continue // missing cell
			}
			switch t := v.(type) {
			case string:
				rec[j] = t
			case float64:
				rec[j] = strconv.FormatFloat(t, 'g', -1, 64)
			case bool:
				rec[j] = strconv.FormatBool(t)
			default:
				return nil, fmt.Errorf("dataset: %s row %d key %s: nested values are not supported", path, i+1, k)
			}
		}
		records[i] = rec
	}

	ds, err := FromRecords(header, records)
	if err != nil {
		return nil, err
	}
	r.logger.Info("ingested JSON file",
		slog.String("path", path),
		slog.Int("rows", ds.NumRows()),
		slog.Int("columns", ds.NumCols()))
	return ds, nil
}

// ArchiveReader ingests a ZIP archive containing a supported tabular file.
// When the archive holds more than one supported file, Member must name the
// one to use.
type ArchiveReader struct {
	// Member selects a file inside the archive. Required only when the
	// archive contains several supported files.
	Member string

	logger *slog.Logger
}

// NewArchiveReader creates an archive reader that ingests the given member.
// An empty member means "the single supported file in the archive".
func NewArchiveReader(member string, logger *slog.Logger) *ArchiveReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveReader{Member: member, logger: logger}
}

func (r *ArchiveReader) Read(path string) (*Dataset, error) {
	if r.logger == nil {
		r.logger = slog.Default()
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open archive %s: %w", path, err)
	}
	defer zr.Close()

	var supported []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".csv", ".tsv", ".json":
			supported = append(supported, f)
		}
	}
	if len(supported) == 0 {
		return nil, fmt.Errorf("dataset: archive %s contains no supported file", path)
	}

	var selected *zip.File
	switch {
	case r.Member != "":
		for _, f := range supported {
			if f.Name == r.Member || filepath.Base(f.Name) == r.Member {
				selected = f
				break
			}
		}
		if selected == nil {
			return nil, fmt.Errorf("dataset: file %q not found in archive %s (available: %s)",
				r.Member, path, memberNames(supported))
		}
	case len(supported) > 1:
		return nil, fmt.Errorf("dataset: archive %s contains multiple supported files, specify one (available: %s)",
			path, memberNames(supported))
	default:
		selected = supported[0]
	}

	r.logger.Info("ingesting archive member",
		slog.String("archive", path),
		slog.String("member", selected.Name))

	rc, err := selected.Open()
	if err != nil {
		return nil, fmt.Errorf("dataset: open archive member %s: %w", selected.Name, err)
	}
	defer rc.Close()

	switch strings.ToLower(filepath.Ext(selected.Name)) {
	case ".csv":
		dr := &delimitedReader{comma: ',', logger: r.logger}
		ds, err := dr.readFrom(rc)
		if err != nil {
			return nil, fmt.Errorf("dataset: read archive member %s: %w", selected.Name, err)
		}
		return ds, nil
	case ".tsv":
		dr := &delimitedReader{comma: '\t', logger: r.logger}
		ds, err := dr.readFrom(rc)
		if err != nil {
			return nil, fmt.Errorf("dataset: read archive member %s: %w", selected.Name, err)
		}
		return ds, nil
	case ".json":
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("dataset: read archive member %s: %w", selected.Name, err)
		}
		jr := &jsonReader{logger: r.logger}
		return jr.readBytes(data, selected.Name)
	}
	return nil, fmt.Errorf("dataset: unsupported archive member %s", selected.Name)
}

func memberNames(files []*zip.File) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

// WriteCSV exports the dataset to a CSV file, creating parent directories as
// needed. Missing cells are written empty.
func (d *Dataset) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dataset: create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(d.ColumnNames()); err != nil {
		return err
	}
	rec := make([]string, d.NumCols())
	for i := 0; i < d.NumRows(); i++ {
		for j, col := range d.cols {
			rec[j] = d.Cell(i, col)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
