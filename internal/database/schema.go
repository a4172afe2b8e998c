package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects the small differences between the production MySQL
// schema and the SQLite schema used by tests.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// The {{ts}} and {{json}} placeholders are expanded per dialect.  SQLite
// must see the bare DATETIME type name so its driver parses timestamps.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS auth_identities (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at    {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id                CHAR(36)     NOT NULL PRIMARY KEY,
		username          VARCHAR(64)  NOT NULL,
		email             VARCHAR(255) NOT NULL,
		role              VARCHAR(16)  NOT NULL DEFAULT 'user',
		created_at        {{ts}}       NOT NULL,
		profile_picture   TEXT         NULL,
		admin_permissions {{json}}     NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fern_species (
		slug              VARCHAR(64)  NOT NULL PRIMARY KEY,
		common_name       VARCHAR(255) NOT NULL,
		scientific_name   VARCHAR(255) NOT NULL,
		description       TEXT         NOT NULL,
		habitat           TEXT         NOT NULL,
		care_requirements TEXT         NOT NULL,
		fun_facts         {{json}}     NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scans (
		id           CHAR(36)    NOT NULL PRIMARY KEY,
		user_id      CHAR(36)    NOT NULL,
		image_url    {{blob}}    NOT NULL,
		is_plant     BOOLEAN     NOT NULL,
		is_fern      BOOLEAN     NOT NULL,
		species_slug VARCHAR(64) NULL,
		confidence   DOUBLE      NOT NULL,
		created_at   {{ts}}      NOT NULL,
		FOREIGN KEY (user_id) REFERENCES auth_identities(id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id          {{serial}},
		user_id     CHAR(36)     NOT NULL,
		token_hash  CHAR(64)     NOT NULL UNIQUE,
		expires_at  {{ts}}       NOT NULL,
		revoked_at  {{ts}}       NULL,
		created_at  {{ts}}       NOT NULL
	)`,
}

var mysqlIndexes = []string{
	`CREATE INDEX idx_profiles_created ON profiles (created_at)`,
	`CREATE INDEX idx_scans_user_created ON scans (user_id, created_at)`,
	`CREATE INDEX idx_scans_created ON scans (created_at)`,
	`CREATE INDEX idx_species_common ON fern_species (common_name)`,
	`CREATE INDEX idx_sessions_user ON sessions (user_id)`,
}

// Statements returns the DDL for the given dialect in execution order.
func Statements(d Dialect) []string {
	r := strings.NewReplacer(
		"{{ts}}", pick(d, "DATETIME(3)", "DATETIME"),
		"{{json}}", pick(d, "JSON", "TEXT"),
		"{{blob}}", pick(d, "MEDIUMTEXT", "TEXT"),
		"{{serial}}", pick(d, "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT"),
	)
	out := make([]string, 0, len(tables)+len(mysqlIndexes))
	for _, t := range tables {
		out = append(out, r.Replace(t))
	}
	if d == MySQL {
		out = append(out, mysqlIndexes...)
	}
	return out
}

// Migrate applies the schema.  On MySQL a duplicate index (error 1061) is
// ignored so the command can be rerun.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range Statements(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if d == MySQL && strings.Contains(err.Error(), "1061") {
				continue
			}
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func pick(d Dialect, mysql, sqlite string) string {
	if d == MySQL {
		return mysql
	}
	return sqlite
}
