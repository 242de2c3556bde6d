// Backfill tool: resolves coordinates for leads that were captured before
// geocoding existed, or whose zip was missing from the static table.
package main

import (
	"context"
	"errors"
	"time"

	"fieldops_backend/internal/geo"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/db"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type leadZip struct {
	id  uuid.UUID
	zip string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead geocode backfill")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	geocoder := geo.NewGeocoder(cfg, log)

	const batchSize = 25
	for {
		leads, err := listLeadsMissingCoordinates(ctx, pool, batchSize)
		if err != nil {
			log.Error("failed to list leads", "error", err)
			return
		}
		if len(leads) == 0 {
			log.Info("no leads left to geocode")
			return
		}

		progress := false

		for _, lead := range leads {
			coords, err := geocoder.Resolve(ctx, lead.zip)
			if errors.Is(err, geo.ErrNotFound) {
				log.Info("zip not resolvable", "leadId", lead.id, "zip", lead.zip)
				continue
			}
			if err != nil {
				log.Error("geocode failed", "leadId", lead.id, "error", err)
				time.Sleep(time.Second)
				continue
			}

			if err := setCoordinates(ctx, pool, lead.id, coords); err != nil {
				log.Error("failed to store coordinates", "leadId", lead.id, "error", err)
				continue
			}

			progress = true
			log.Info("lead geocoded", "leadId", lead.id, "zip", lead.zip, "lat", coords.Lat, "lng", coords.Lng)
		}

		if !progress {
			log.Info("no progress in batch, stopping")
			return
		}
	}
}

func listLeadsMissingCoordinates(ctx context.Context, pool *pgxpool.Pool, limit int) ([]leadZip, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, zip
		FROM leads
		WHERE lat IS NULL
		  AND zip <> ''
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]leadZip, 0, limit)
	for rows.Next() {
		var lead leadZip
		if err := rows.Scan(&lead.id, &lead.zip); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func setCoordinates(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, coords geo.Coordinates) error {
	_, err := pool.Exec(ctx, `
		UPDATE leads SET lat = $2, lng = $3, updated_at = now() WHERE id = $1
	`, id, coords.Lat, coords.Lng)
	return err
}
