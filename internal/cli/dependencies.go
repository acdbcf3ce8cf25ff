package cli

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/pkg/errors"
)

const (
	warehouseDependencyName = "warehouse"
	redisDependencyName     = "redis"
	kafkaDependencyName     = "kafka"
)

// warehouseDependency opens the Postgres pool and brings the schema up to date.
type warehouseDependency struct {
	cfg    *config.Config
	logger ectologger.Logger
	db     database.DB
}

func (d *warehouseDependency) GetName() string {
	return warehouseDependencyName
}

func (d *warehouseDependency) DependsOn() []string {
	return nil
}

func (d *warehouseDependency) Start(ctx context.Context) error {
	db, err := database.Open(ctx, database.ConnectionConfig{
		Driver:          d.cfg.DatabaseDriver,
		DSN:             d.cfg.DatabaseDSN(),
		MaxOpenConns:    d.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    d.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: d.cfg.DatabaseConnMaxLifetime,
	}, d.logger)
	if err != nil {
		return err
	}

	if d.cfg.DatabaseMigrationsEnabled {
		migrations := database.NewMigrationService(d.logger, &database.MigrationConfig{
			MigrationFolderPath: d.cfg.DatabaseMigrationFolderPath,
			MigrationsTable:     d.cfg.DatabaseMigrationsTable,
			Version:             d.cfg.DatabaseMigrationVersion,
			Force:               d.cfg.DatabaseMigrationForce,
			AutoRollback:        d.cfg.DatabaseMigrationAutoRollback,
		})
		if err := migrations.MigrateWarehouse(d.cfg.DatabaseName, db); err != nil {
			_ = db.Close()
			return errors.Wrap(err, "failed to migrate warehouse")
		}
	}

	d.db = db
	return nil
}

func (d *warehouseDependency) Stop(ctx context.Context) error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

type redisDependency struct {
	cfg    *config.Config
	logger ectologger.Logger
	client *redis.Client
}

func (d *redisDependency) GetName() string {
	return redisDependencyName
}

func (d *redisDependency) DependsOn() []string {
	return nil
}

func (d *redisDependency) Start(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     d.cfg.RedisHost,
		Port:     d.cfg.RedisPort,
		Password: d.cfg.RedisPassword,
		DB:       d.cfg.RedisDB,
	}, d.logger)
	if err != nil {
		return err
	}
	d.client = client
	return nil
}

func (d *redisDependency) Stop(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// kafkaDependency builds the change-event producer. The writer connects
// lazily, so Start cannot fail on an unreachable broker.
type kafkaDependency struct {
	cfg      *config.Config
	logger   ectologger.Logger
	producer *kafka.Producer
}

func (d *kafkaDependency) GetName() string {
	return kafkaDependencyName
}

func (d *kafkaDependency) DependsOn() []string {
	return []string{warehouseDependencyName}
}

func (d *kafkaDependency) Start(ctx context.Context) error {
	d.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      d.cfg.KafkaBrokers,
		Topic:        d.cfg.KafkaOutputTopic,
		BatchSize:    d.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(d.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: d.cfg.KafkaRequiredAcks,
		Compression:  d.cfg.KafkaCompression,
	}, d.logger)
	d.logger.Infof("Publishing warehouse events to %s", d.cfg.KafkaOutputTopic)
	return nil
}

func (d *kafkaDependency) Stop(ctx context.Context) error {
	if d.producer == nil {
		return nil
	}
	return d.producer.Close()
}
