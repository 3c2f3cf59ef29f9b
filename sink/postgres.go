package sink

import (
	"context"
	"database/sql"

	"github.com/gr-butler/airsense/data"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	// postgres driver
	_ "github.com/lib/pq"
)

const createReadings = `CREATE TABLE IF NOT EXISTS readings (
	time   TIMESTAMPTZ      NOT NULL,
	sensor TEXT             NOT NULL,
	field  TEXT             NOT NULL,
	value  DOUBLE PRECISION NOT NULL
)`

const insertReading = `INSERT INTO readings (time, sensor, field, value) VALUES ($1, $2, $3, $4)`

// Postgres stores every healthy field as one row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres open")
	}
	p, err := newPostgres(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Postgres connected")
	return p, nil
}

func newPostgres(ctx context.Context, db *sql.DB) (*Postgres, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "postgres ping")
	}
	if _, err := db.ExecContext(ctx, createReadings); err != nil {
		return nil, errors.Wrap(err, "postgres create table")
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Name() string { return "postgres" }

// Write inserts a cycle in one transaction.
func (p *Postgres) Write(ctx context.Context, points []*data.Point) error {
	points = healthy(points)
	if len(points) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "postgres begin")
	}
	stmt, err := tx.PrepareContext(ctx, insertReading)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "postgres prepare")
	}
	defer stmt.Close()
	for _, pt := range points {
		for _, f := range pt.Fields {
			if _, err := stmt.ExecContext(ctx, pt.Time.UTC(), pt.Sensor, f.Name, f.Value); err != nil {
				tx.Rollback()
				return errors.Wrapf(err, "postgres insert %s/%s", pt.Sensor, f.Name)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "postgres commit")
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
