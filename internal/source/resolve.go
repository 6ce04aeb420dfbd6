// Package source turns configured location strings into survey sources.
//
//	data/od.csv, data/od.xlsx            local file
//	s3://bucket/key.xlsx                 object in S3/MinIO
//	sqlite://data/od.db?dataset=2025     table imported by import-survey
//	postgres://user@host/db?dataset=2025 the same tables in Postgres
//	mongodb://host:27017#od.trips        one document per trip
package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/config"
	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/internal/storage"
	"github.com/rmgsl/mapa-od/internal/survey"
	"github.com/rmgsl/mapa-od/repository"
)

var log = logrus.WithField("module", "source")

// Kind is the storage behind a location
type Kind string

const (
	KindFile     Kind = "file"
	KindS3       Kind = "s3"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindMongo    Kind = "mongodb"
)

// Location is a parsed source location
type Location struct {
	Kind Kind
	// Path is the file path, the SQLite database path or the S3 key
	Path string
	// URL is the connection string for Postgres and MongoDB, without the
	// dataset parameter
	URL string
	// Bucket is set for S3
	Bucket string
	// Database and Collection are set for MongoDB
	Database   string
	Collection string
	// Dataset selects one imported survey; empty means the latest
	Dataset string
}

// ParseLocation parses a configured location string
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty source location")
	}

	switch {
	case strings.HasPrefix(raw, "s3://"):
		bucket, key, err := storage.ParseURL(raw)
		if err != nil {
			return Location{}, err
		}
		return Location{Kind: KindS3, Bucket: bucket, Path: key}, nil

	case strings.HasPrefix(raw, "sqlite://"):
		path, query, _ := strings.Cut(strings.TrimPrefix(raw, "sqlite://"), "?")
		if path == "" {
			return Location{}, fmt.Errorf("invalid sqlite location %q: missing database path", raw)
		}
		values, err := url.ParseQuery(query)
		if err != nil {
			return Location{}, fmt.Errorf("invalid sqlite location %q: %w", raw, err)
		}
		return Location{Kind: KindSQLite, Path: path, Dataset: values.Get("dataset")}, nil

	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		u, dataset, err := splitDataset(raw)
		if err != nil {
			return Location{}, err
		}
		return Location{Kind: KindPostgres, URL: u, Dataset: dataset}, nil

	case strings.HasPrefix(raw, "mongodb://"), strings.HasPrefix(raw, "mongodb+srv://"):
		uri, target, ok := strings.Cut(raw, "#")
		if !ok {
			return Location{}, fmt.Errorf("invalid mongodb location %q: want uri#database.collection", raw)
		}
		database, collection, ok := strings.Cut(target, ".")
		if !ok || database == "" || collection == "" {
			return Location{}, fmt.Errorf("invalid mongodb location %q: want uri#database.collection", raw)
		}
		u, dataset, err := splitDataset(uri)
		if err != nil {
			return Location{}, err
		}
		return Location{Kind: KindMongo, URL: u, Database: database, Collection: collection, Dataset: dataset}, nil
	}

	if strings.Contains(raw, "://") {
		return Location{}, fmt.Errorf("unsupported source location %q", raw)
	}
	if _, err := survey.FormatFromPath(raw); err != nil {
		return Location{}, err
	}
	return Location{Kind: KindFile, Path: raw}, nil
}

// splitDataset removes the dataset query parameter, which the database
// drivers would reject as an unknown option
func splitDataset(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid source location: %w", err)
	}
	q := u.Query()
	dataset := q.Get("dataset")
	q.Del("dataset")
	u.RawQuery = q.Encode()
	return u.String(), dataset, nil
}

// Resolver opens sources and keeps the connections they share
type Resolver struct {
	storage    storage.Options
	normalizer *survey.Normalizer

	s3      *storage.S3Service
	sqlite  map[string]*repository.SQLiteDB
	closers []func()
}

// NewResolver creates a resolver. Every source it returns rewrites location
// names through normalizer; a nil normalizer only cleans them.
func NewResolver(opts storage.Options, normalizer *survey.Normalizer) *Resolver {
	return &Resolver{
		storage:    opts,
		normalizer: normalizer,
		sqlite:     make(map[string]*repository.SQLiteDB),
	}
}

// Resolve opens the source described by spec. Database sources connect
// here; their tables are read on Load.
func (r *Resolver) Resolve(ctx context.Context, spec config.SourceSpec) (survey.Source, error) {
	loc, err := ParseLocation(spec.Location)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", spec.ID, err)
	}

	var src survey.Source
	switch loc.Kind {
	case KindFile:
		src = survey.NewFileSource(spec.ID, loc.Path)

	case KindS3:
		svc, err := r.s3Service()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.ID, err)
		}
		src = storage.NewS3Source(spec.ID, svc, loc.Bucket, loc.Path)

	case KindSQLite:
		conn, err := r.sqliteDB(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.ID, err)
		}
		src = repository.NewSQLiteSource(spec.ID, spec.Location, conn.GetDB(), loc.Dataset)

	case KindPostgres:
		pg, err := repository.NewPostgresSource(spec.ID, loc.URL, loc.Dataset)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.ID, err)
		}
		r.closers = append(r.closers, pg.Close)
		src = pg

	case KindMongo:
		mongo, err := repository.NewMongoSource(ctx, spec.ID, loc.URL, loc.Database, loc.Collection, loc.Dataset)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.ID, err)
		}
		r.closers = append(r.closers, func() {
			if err := mongo.Close(context.Background()); err != nil {
				log.Warnf("Failed to disconnect mongo: %v", err)
			}
		})
		src = mongo
	}

	log.Infof("Registered source %s (%s)", spec.ID, loc.Kind)
	return survey.Normalized(src, r.normalizer), nil
}

// ResolveAll opens every configured source, stopping at the first failure
func (r *Resolver) ResolveAll(ctx context.Context, specs []config.SourceSpec) ([]survey.Source, error) {
	sources := make([]survey.Source, 0, len(specs))
	for _, spec := range specs {
		src, err := r.Resolve(ctx, spec)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (r *Resolver) s3Service() (*storage.S3Service, error) {
	if r.s3 != nil {
		return r.s3, nil
	}
	svc, err := storage.NewS3Service(r.storage)
	if err != nil {
		return nil, err
	}
	r.s3 = svc
	return svc, nil
}

func (r *Resolver) sqliteDB(path string) (*repository.SQLiteDB, error) {
	if conn, ok := r.sqlite[path]; ok {
		return conn, nil
	}
	conn, err := repository.NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	r.sqlite[path] = conn
	r.closers = append(r.closers, func() { conn.Close() })
	return conn, nil
}

// Close releases every connection opened by Resolve
func (r *Resolver) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
	r.sqlite = make(map[string]*repository.SQLiteDB)
}

// LoadLocations reads the coordinate table from a CSV file or a
// sqlite://path locations table. An empty location selects the built-in
// municipality table.
func LoadLocations(ctx context.Context, location string) (*geo.LocationTable, error) {
	if location == "" {
		return geo.DefaultTable(), nil
	}

	if !strings.HasPrefix(location, "sqlite://") {
		return geo.LoadFile(location)
	}

	path, _, _ := strings.Cut(strings.TrimPrefix(location, "sqlite://"), "?")
	conn, err := repository.NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	locations, err := repository.NewSQLiteLocationRepository(conn.GetDB()).GetAllLocations(ctx)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		log.Warnf("No locations in %s, using built-in table", path)
		return geo.DefaultTable(), nil
	}
	log.Infof("Loaded %d locations from %s", len(locations), path)
	return geo.NewLocationTable(locations), nil
}
