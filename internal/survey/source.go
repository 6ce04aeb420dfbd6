package survey

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "survey")

// Source produces a survey table. Implementations read files, objects or
// database tables; every failure is reported as a LoadError.
type Source interface {
	ID() string
	Location() string
	Load(ctx context.Context) (*Table, error)
}

// FileSource loads a CSV or XLSX file from the local filesystem
type FileSource struct {
	id     string
	path   string
	schema Schema
}

// NewFileSource creates a file source using the default schema
func NewFileSource(id, path string) *FileSource {
	return &FileSource{id: id, path: path, schema: DefaultSchema()}
}

func (s *FileSource) ID() string       { return s.id }
func (s *FileSource) Location() string { return s.path }

// Load reads and maps the whole file
func (s *FileSource) Load(ctx context.Context) (*Table, error) {
	format, err := FormatFromPath(s.path)
	if err != nil {
		return nil, &LoadError{Source: s.id, Err: err}
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, &LoadError{Source: s.id, Err: err}
	}
	defer f.Close()

	table, err := Parse(s.id, f, format, s.schema)
	if err != nil {
		return nil, err
	}

	log.Infof("Loaded %d survey records from %s (snapshot %s)", table.Len(), s.path, table.SnapshotID)
	return table, nil
}
