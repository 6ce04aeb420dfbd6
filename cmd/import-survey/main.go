package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/config"
	"github.com/rmgsl/mapa-od/internal/db"
	"github.com/rmgsl/mapa-od/internal/source"
	"github.com/rmgsl/mapa-od/internal/storage"
	"github.com/rmgsl/mapa-od/internal/survey"
	"github.com/rmgsl/mapa-od/repository"
)

var log = logrus.WithField("module", "import-survey")

func main() {
	// Command line flags
	dbPath := flag.String("db", "data/od.db", "Path to SQLite database")
	file := flag.String("file", "", "Survey file to import (.csv or .xlsx)")
	dataset := flag.String("dataset", "", "Dataset id (default: derived from the file name)")
	locationsFile := flag.String("locations", "", "Locations CSV (name,lat,lon); default: built-in municipality table")
	upload := flag.String("upload", "", "Also upload the survey file to s3://bucket/key")
	mongoTarget := flag.String("mongo", "", "Also insert the trips into mongodb://host#database.collection")
	keep := flag.Int("keep", 0, "Keep only the N most recently imported datasets (0 keeps all)")
	flag.Parse()

	config.LoadEnvFiles(".")
	cfg := config.Load()

	if *file == "" {
		log.Fatal("-file is required")
	}
	if *dataset == "" {
		*dataset = deriveDatasetID(*file)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	locations, err := source.LoadLocations(ctx, *locationsFile)
	if err != nil {
		log.Fatalf("Failed to load locations: %v", err)
	}

	// Parse and map the survey the same way the API does
	table, err := survey.NewFileSource(*dataset, *file).Load(ctx)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}
	survey.NewNormalizer(locations.Names()).Apply(table.Records)
	log.Infof("Parsed %d trips with attributes %v", table.Len(), table.Attributes)

	// Initialize database
	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	log.Infof("Connected to database: %s", *dbPath)

	// Ensure schema exists (creates tables if needed)
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	if err := database.ImportDataset(ctx, *dataset, filepath.Base(*file), table); err != nil {
		log.Fatalf("Failed to import dataset: %v", err)
	}
	if err := database.UpsertLocations(ctx, locations.Locations()); err != nil {
		log.Fatalf("Failed to import locations: %v", err)
	}

	if err := database.Cleanup(ctx, *keep); err != nil {
		log.Fatalf("Failed to clean up old datasets: %v", err)
	}

	if *upload != "" {
		if err := uploadFile(ctx, cfg, *file, *upload); err != nil {
			log.Errorf("Upload failed: %v", err)
		}
	}

	if *mongoTarget != "" {
		if err := insertMongo(ctx, *mongoTarget, *dataset, table); err != nil {
			log.Errorf("Mongo insert failed: %v", err)
		}
	}

	datasets, err := database.ListDatasets(ctx)
	if err != nil {
		log.Fatalf("Failed to list datasets: %v", err)
	}
	for _, d := range datasets {
		log.Infof("  %s: %d trips from %s (imported %s)", d.DatasetID, d.RecordCount, d.SourceFile, d.ImportedAt.Format(time.RFC3339))
	}

	log.Infof("Import complete! Serve it with SURVEY_SOURCES=%s=sqlite://%s?dataset=%s", *dataset, *dbPath, *dataset)
}

// deriveDatasetID turns "Pesquisa OD 2025.xlsx" into "pesquisa-od-2025"
func deriveDatasetID(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToLower(survey.FoldKey(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	}), "-")
}

func uploadFile(ctx context.Context, cfg *config.Config, path, target string) error {
	bucket, key, err := storage.ParseURL(target)
	if err != nil {
		return err
	}
	svc, err := storage.NewS3Service(storage.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return svc.Upload(ctx, bucket, key, f, info.Size())
}

func insertMongo(ctx context.Context, target, dataset string, table *survey.Table) error {
	loc, err := source.ParseLocation(target)
	if err != nil {
		return err
	}
	if loc.Kind != source.KindMongo {
		return fmt.Errorf("-mongo wants mongodb://host#database.collection, got %q", target)
	}
	mongo, err := repository.NewMongoSource(ctx, dataset, loc.URL, loc.Database, loc.Collection, dataset)
	if err != nil {
		return err
	}
	defer mongo.Close(context.Background())

	if err := mongo.InsertTrips(ctx, dataset, table.Records); err != nil {
		return err
	}
	log.Infof("Inserted %d trips into %s", table.Len(), mongo.Location())
	return nil
}
