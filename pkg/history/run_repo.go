package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Outcome 一局的结果
type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeGameOver   Outcome = "game_over"
	OutcomeVictory    Outcome = "victory"
	OutcomeAbandoned  Outcome = "abandoned" // 未结束就重开或退出
)

// ErrRunNotFound 记录不存在
var ErrRunNotFound = errors.New("run not found")

// Run 一局的汇总
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time // 未结束时为零值
	Outcome   Outcome
	Level     int
	Score     int
	Lives     int
	Customers []string // 按出场顺序
}

// Finished 是否已结束
func (r Run) Finished() bool {
	return r.Outcome != OutcomeInProgress
}

// RunEvent 一次阶段变化
type RunEvent struct {
	RunID     string
	Seq       int
	Op        string
	From      string
	To        string
	Level     int
	Lives     int
	Score     int
	CreatedAt time.Time
}

// RunRepo runs / run_events 两张表的读写
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo 创建仓库
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create 插入一局新记录
func (r *RunRepo) Create(ctx context.Context, run Run) error {
	customers, err := encodeCustomers(run.Customers)
	if err != nil {
		return err
	}
	if run.Outcome == "" {
		run.Outcome = OutcomeInProgress
	}

	const q = `INSERT INTO runs (run_id, started_at, ended_at, outcome, level, score, lives, customers_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		run.ID,
		run.StartedAt.UnixMilli(),
		unixMilli(run.EndedAt),
		string(run.Outcome),
		run.Level,
		run.Score,
		run.Lives,
		customers,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Update 覆盖一局的汇总字段
func (r *RunRepo) Update(ctx context.Context, run Run) error {
	customers, err := encodeCustomers(run.Customers)
	if err != nil {
		return err
	}

	const q = `UPDATE runs SET ended_at = ?, outcome = ?, level = ?, score = ?, lives = ?, customers_json = ?
WHERE run_id = ?`
	res, err := r.db.ExecContext(ctx, q,
		unixMilli(run.EndedAt),
		string(run.Outcome),
		run.Level,
		run.Score,
		run.Lives,
		customers,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

// AppendEvent 追加一条阶段变化
func (r *RunRepo) AppendEvent(ctx context.Context, ev RunEvent) error {
	const q = `INSERT INTO run_events (run_id, seq_no, op, from_phase, to_phase, level, lives, score, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		ev.RunID,
		ev.Seq,
		ev.Op,
		ev.From,
		ev.To,
		ev.Level,
		ev.Lives,
		ev.Score,
		ev.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append run event: %w", err)
	}
	return nil
}

const runColumns = `run_id, started_at, ended_at, outcome, level, score, lives, customers_json`

// Get 按 ID 读取一局
func (r *RunRepo) Get(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent 最近开始的 n 局，新的在前
func (r *RunRepo) ListRecent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Best 已结束的局中得分最高的一局；同分取较早的
// 没有记录时第二个返回值为 false
func (r *RunRepo) Best(ctx context.Context) (Run, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE outcome != ? ORDER BY score DESC, started_at ASC LIMIT 1`,
		string(OutcomeInProgress))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("best run: %w", err)
	}
	return run, true, nil
}

// Events 一局的全部阶段变化，按序号升序
func (r *RunRepo) Events(ctx context.Context, runID string) ([]RunEvent, error) {
	const q = `SELECT run_id, seq_no, op, from_phase, to_phase, level, lives, score, created_at
FROM run_events
WHERE run_id = ?
ORDER BY seq_no ASC`

	rows, err := r.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var ev RunEvent
		var created int64
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Op, &ev.From, &ev.To, &ev.Level, &ev.Lives, &ev.Score, &created); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		ev.CreatedAt = time.UnixMilli(created)
		events = append(events, ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		started   int64
		ended     int64
		outcome   string
		customers string
	)
	if err := row.Scan(&run.ID, &started, &ended, &outcome, &run.Level, &run.Score, &run.Lives, &customers); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(started)
	if ended != 0 {
		run.EndedAt = time.UnixMilli(ended)
	}
	run.Outcome = Outcome(outcome)
	if err := json.Unmarshal([]byte(customers), &run.Customers); err != nil {
		return Run{}, fmt.Errorf("decode customers: %w", err)
	}
	return run, nil
}

func encodeCustomers(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode customers: %w", err)
	}
	return string(b), nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
