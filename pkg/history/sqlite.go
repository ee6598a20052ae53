// Package history 用 SQLite 保存每一局的记录和阶段变化
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 初始表结构
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	ended_at       INTEGER NOT NULL DEFAULT 0,
	outcome        TEXT NOT NULL DEFAULT 'in_progress',
	level          INTEGER NOT NULL DEFAULT 0,
	score          INTEGER NOT NULL DEFAULT 0,
	lives          INTEGER NOT NULL DEFAULT 0,
	customers_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq_no     INTEGER NOT NULL,
	op         TEXT NOT NULL,
	from_phase TEXT NOT NULL,
	to_phase   TEXT NOT NULL,
	level      INTEGER NOT NULL DEFAULT 0,
	lives      INTEGER NOT NULL DEFAULT 0,
	score      INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	UNIQUE(run_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_run_events_run_seq ON run_events(run_id, seq_no);
`

// NewDB 打开 SQLite 数据库并建表
// path 为 ":memory:" 时使用内存库
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 单写者
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
