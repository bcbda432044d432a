package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"etaservice/pkg/logger"
)

const (
	PredictionsCollection = "eta_predictions"
	migrationsCollection  = "migrations"
)

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
	Down        func(ctx context.Context, db *mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

// NewMigrator prepares the schema migrations. retention bounds how long
// prediction audit records are kept; zero keeps them forever.
func NewMigrator(db *mongo.Database, retention time.Duration, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.Discard()
	}
	return &Migrator{
		db:         db,
		migrations: getMigrations(retention),
		logger:     log,
	}
}

func (m *Migrator) Up(ctx context.Context) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}

		log := m.logger.WithField("migration", migration.Version)
		log.Infof("Running migration: %s", migration.Description)

		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := m.updateVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}

		log.Info("Migration completed successfully")
	}

	return nil
}

func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}

		m.logger.WithField("migration", migration.Version).Infof("Reverting migration: %s", migration.Description)

		if err := migration.Down(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
		}

		previousVersion := targetVersion
		if i > 0 {
			previousVersion = m.migrations[i-1].Version
		}
		if err := m.updateVersion(ctx, previousVersion); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection(migrationsCollection).FindOne(ctx, bson.D{}).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(ctx context.Context, version int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.db.Collection(migrationsCollection).ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now().UTC()}},
		options.Replace().SetUpsert(true),
	)

	return err
}

// expireAfterSeconds converts retention for a TTL index, clamped to the
// int32 range the server accepts.
func expireAfterSeconds(retention time.Duration) int32 {
	seconds := int64(retention / time.Second)
	if retention%time.Second != 0 {
		seconds++
	}
	if seconds > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(seconds)
}

func getMigrations(retention time.Duration) []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create eta_predictions indexes",
			Up:          createPredictionIndexes,
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(PredictionsCollection).Indexes().DropAll(ctx)
				return err
			},
		},
		{
			Version:     2,
			Description: "Expire eta_predictions after the retention window",
			Up: func(ctx context.Context, db *mongo.Database) error {
				if retention <= 0 {
					return nil
				}
				_, err := db.Collection(PredictionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
					Keys:    bson.D{{Key: "created_at", Value: 1}},
					Options: options.Index().SetName("created_at_ttl").SetExpireAfterSeconds(expireAfterSeconds(retention)),
				})
				return err
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(PredictionsCollection).Indexes().DropOne(ctx, "created_at_ttl")
				if retention <= 0 {
					return nil
				}
				return err
			},
		},
	}
}

func createPredictionIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "result.model_used", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("model_used_created_at"),
		},
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetName("request_id").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "shipment_id", Value: 1}},
			Options: options.Index().SetName("shipment_id").SetSparse(true),
		},
	}

	_, err := db.Collection(PredictionsCollection).Indexes().CreateMany(ctx, indexes)
	return err
}
