package archive

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
	   CREATE TABLE IF NOT EXISTS attributes (
	       key    TEXT PRIMARY KEY,
	       value  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id               INTEGER PRIMARY KEY AUTOINCREMENT,
	       run_id           TEXT NOT NULL,
	       time_offset_ms   REAL NOT NULL,
	       start_ns         INTEGER NOT NULL,
	       end_ns           INTEGER NOT NULL,
	       n_images         INTEGER NOT NULL CHECK (n_images > 0),
	       fps              REAL NOT NULL,
	       width            INTEGER NOT NULL CHECK (width > 0),
	       height           INTEGER NOT NULL CHECK (height > 0),
	       counter          INTEGER NOT NULL,
	       counter_hw       INTEGER NOT NULL,
	       timestamp        INTEGER NOT NULL,
	       timestamp_media  INTEGER NOT NULL,
	       flag_state       INTEGER NOT NULL,
	       temp_chip        REAL NOT NULL,
	       temp_flag        REAL NOT NULL,
	       temp_box         REAL NOT NULL,
	       temp_host        REAL,
	       median           BLOB NOT NULL,
	       min              BLOB NOT NULL,
	       max              BLOB NOT NULL,
	       std              BLOB NOT NULL,
	       snapshot         BLOB NOT NULL
	   );`

	insertSampleSQL = `
    INSERT INTO samples (
        run_id, time_offset_ms, start_ns, end_ns,
        n_images, fps, width, height,
        counter, counter_hw, timestamp, timestamp_media, flag_state,
        temp_chip, temp_flag, temp_box, temp_host,
        median, min, max, std, snapshot
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertAttributeSQL = `INSERT OR IGNORE INTO attributes (key, value) VALUES (?, ?)`
)

// ensureSchema creates the tables of a new archive file and refuses files
// written with another schema version.
func ensureSchema(db *sql.DB, path string, log logger.Logger) error {
	errFactory := errors.New()

	var exists bool
	if err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name='schema_versions'
        )
    `).Scan(&exists); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if exists {
		var version int
		if err := db.QueryRow(`SELECT MAX(version) FROM schema_versions`).Scan(&version); err != nil {
			return errFactory.Wrap(ErrSchemaInitFailed, err)
		}
		if version != SchemaVersion {
			return errFactory.WithData(ErrSchemaMismatch, struct {
				Path  string
				Found int
				Want  int
			}{path, version, SchemaVersion})
		}
		log.Debug().Str("path", path).Msg("Appending to existing archive")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	if _, err := tx.Exec(createTablesSQL); err != nil {
		_ = tx.Rollback()
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{err.Error(), createTablesSQL})
	}
	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		_ = tx.Rollback()
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
