package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

var actorStorageTables = map[string]string{
	"mysql": `
		CREATE TABLE IF NOT EXISTS actor_storage (
			namespace VARCHAR(191) NOT NULL,
			storage_key VARCHAR(191) NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, storage_key)
		);
	`,
	"sqlite3": `
		CREATE TABLE IF NOT EXISTS actor_storage (
			namespace TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, storage_key)
		);
	`,
}

// AutoMigrateActorStorage creates the actor_storage table on every shard if it does not exist.
func AutoMigrateActorStorage(retries int, driver string, dbs ...*sql.DB) error {
	query, ok := actorStorageTables[driver]
	if !ok {
		return fmt.Errorf("no actor_storage schema for driver %q", driver)
	}

	for i, db := range dbs {
		_, err := db.Exec(query)
		if err != nil {
			// Retry creating the table
			for attempt := 0; attempt < retries; attempt++ {
				time.Sleep(1 * time.Second)
				_, err = db.Exec(query)
				if err == nil {
					break
				}
			}
		}
		if err != nil {
			return fmt.Errorf("migrate actor_storage on shard %d: %w", i, err)
		}
	}
	return nil
}
