package metrics

import (
	"database/sql"

	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS window_metrics (
	       id               INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp        INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer'),
	       run_id           TEXT NOT NULL,
	       file             TEXT NOT NULL,
	       window_index     INTEGER NOT NULL CHECK (window_index >= 0),
	       n_images         INTEGER NOT NULL CHECK (n_images > 0),
	       fps              REAL NOT NULL,
	       temp_chip        REAL NOT NULL,
	       temp_box         REAL NOT NULL,
	       temp_host        REAL,
	       shutter_triggers INTEGER NOT NULL CHECK (typeof(shutter_triggers) = 'integer'),
	       wait_ms          INTEGER NOT NULL CHECK (typeof(wait_ms) = 'integer'),
	       deadline_missed  INTEGER NOT NULL CHECK (deadline_missed IN (0, 1)),
	       flush_ms         INTEGER NOT NULL CHECK (typeof(flush_ms) = 'integer'),
	       flush_overrun    INTEGER NOT NULL CHECK (flush_overrun IN (0, 1))
	   );
	   CREATE INDEX IF NOT EXISTS window_metrics_run ON window_metrics (run_id, file);`

	insertMetricsSQL = `
    INSERT INTO window_metrics (
        timestamp, run_id, file, window_index,
        n_images, fps,
        temp_chip, temp_box, temp_host,
        shutter_triggers,
        wait_ms, deadline_missed,
        flush_ms, flush_overrun
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("Failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
