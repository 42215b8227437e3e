package main

import (
	"database/sql"
	"strings"
	"time"
	"wims_connector/wims"

	"github.com/ansel1/merry"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrModuleAlreadyBound = merry.New("module already bound to a class")
var ErrModuleNotFound = merry.New("module not found")

// ModuleBinding links a host course module to the WIMS class it uses.
type ModuleBinding struct {
	ModuleID  int64     `json:"moduleId"`
	ClassID   string    `json:"classId"`
	Binding   string    `json:"binding"`
	Lang      string    `json:"lang"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b ModuleBinding) Class() wims.Class {
	return wims.Class{ID: b.ClassID, Binding: b.Binding}
}

type CallFailure struct {
	ID         int64     `json:"id"`
	Job        string    `json:"job"`
	Code       string    `json:"code"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Diagnostic string    `json:"diagnostic"`
	CreatedAt  time.Time `json:"createdAt"`
}

var migrations = []func(*sql.Tx) error{
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`
		CREATE TABLE migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			migrated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
		return merry.Wrap(err)
	},
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`
		CREATE TABLE modules (
			module_id INTEGER PRIMARY KEY,
			class_id TEXT NOT NULL,
			binding TEXT NOT NULL,
			lang TEXT NOT NULL DEFAULT 'en',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
		return merry.Wrap(err)
	},
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`
		CREATE TABLE calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job TEXT NOT NULL,
			code TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			diagnostic TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
		if err != nil {
			return merry.Wrap(err)
		}
		_, err = tx.Exec(`CREATE INDEX calls__created_at ON calls (created_at)`)
		return merry.Wrap(err)
	},
}

func createTables(db *sql.DB) error {
	lastVersion := -1
	err := db.QueryRow(`SELECT version FROM migrations ORDER BY migrated_at DESC, id DESC LIMIT 1`).Scan(&lastVersion)
	if err != nil && err != sql.ErrNoRows && !strings.HasPrefix(err.Error(), "no such table: migrations") {
		return merry.Wrap(err)
	}
	for version := lastVersion + 1; version < len(migrations); version += 1 {
		tx, err := db.Begin()
		if err != nil {
			return merry.Wrap(err)
		}
		if err := migrations[version](tx); err != nil {
			tx.Rollback()
			return merry.Wrap(err)
		}
		if _, err := tx.Exec(`INSERT INTO migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return merry.Wrap(err)
		}
		if err := tx.Commit(); err != nil {
			tx.Rollback()
			return merry.Wrap(err)
		}
		log.Info().Int("version", version).Msg("migrated DB")
	}
	return nil
}

func setupDB(configDir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", configDir+"/main.db")
	if err != nil {
		return nil, merry.Wrap(err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, merry.Wrap(err)
	}
	return db, nil
}

func saveModuleBinding(db *sql.DB, b *ModuleBinding) error {
	_, err := db.Exec(`
		INSERT INTO modules (module_id, class_id, binding, lang)
		VALUES (?,?,?,?)`,
		b.ModuleID, b.ClassID, b.Binding, b.Lang)
	if sqlite3Error, ok := err.(sqlite3.Error); ok {
		if sqlite3Error.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqlite3Error.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrModuleAlreadyBound.Here()
		}
	}
	return merry.Wrap(err)
}

func loadModuleBinding(db *sql.DB, moduleID int64) (*ModuleBinding, error) {
	b := &ModuleBinding{}
	err := db.QueryRow(`
		SELECT module_id, class_id, binding, lang, created_at
		FROM modules WHERE module_id = ?`, moduleID,
	).Scan(&b.ModuleID, &b.ClassID, &b.Binding, &b.Lang, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrModuleNotFound.Here()
	}
	if err != nil {
		return nil, merry.Wrap(err)
	}
	return b, nil
}

func saveCallFailure(db *sql.DB, res *wims.Result) error {
	_, err := db.Exec(`
		INSERT INTO calls (job, code, status, message, diagnostic)
		VALUES (?,?,?,?,?)`,
		res.Job, res.Code, res.Status.String(), res.Message, res.DiagnosticText())
	return merry.Wrap(err)
}

func loadRecentCallFailures(db *sql.DB, limit int) ([]*CallFailure, error) {
	rows, err := db.Query(`
		SELECT id, job, code, status, message, diagnostic, created_at
		FROM calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	defer rows.Close()

	failures := []*CallFailure{}
	for rows.Next() {
		f := &CallFailure{}
		err := rows.Scan(&f.ID, &f.Job, &f.Code, &f.Status, &f.Message, &f.Diagnostic, &f.CreatedAt)
		if err != nil {
			return nil, merry.Wrap(err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, merry.Wrap(err)
	}
	return failures, nil
}
