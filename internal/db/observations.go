package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joeblew999/plat-stat/internal/ingest"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS observations_seq;
CREATE TABLE IF NOT EXISTS observations (
	seq       BIGINT DEFAULT nextval('observations_seq'),
	source    VARCHAR NOT NULL,
	region    VARCHAR NOT NULL,
	key       VARCHAR NOT NULL,
	year      INTEGER NOT NULL,
	value     DOUBLE NOT NULL,
	loaded_at TIMESTAMP DEFAULT current_timestamp
);`

const latestQuery = `
SELECT region, key, value
FROM observations
QUALIFY row_number() OVER (PARTITION BY region, key ORDER BY seq DESC) = 1`

var _ ingest.Sink = (*Observations)(nil)

// Observations stages ingest observations in the observations table.
type Observations struct {
	db *sql.DB
}

// NewObservations creates the table if needed.
func NewObservations(ctx context.Context, db *sql.DB) (*Observations, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create observations table: %w", err)
	}
	return &Observations{db: db}, nil
}

// Save appends observations in order, so later rows win in Latest.
func (o *Observations) Save(ctx context.Context, obs []ingest.Observation) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (source, region, key, year, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ob := range obs {
		if _, err := stmt.ExecContext(ctx, ob.Source, ob.Region, ob.Key, ob.Year, ob.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s/%s: %w", ob.Region, ob.Key, err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recently staged value per region and key.
func (o *Observations) Latest(ctx context.Context) (map[string]map[string]float64, error) {
	rows, err := o.db.QueryContext(ctx, latestQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]float64)
	for rows.Next() {
		var region, key string
		var value float64
		if err := rows.Scan(&region, &key, &value); err != nil {
			return nil, err
		}
		m, ok := out[region]
		if !ok {
			m = make(map[string]float64)
			out[region] = m
		}
		m[key] = value
	}
	return out, rows.Err()
}
