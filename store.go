package main

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the embedded SQLite panel and results store. One file holds the
// imported observations plus every allocation and backtest run produced from
// them.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the SQLite database at path and
// ensures the schema exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent inserts.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema() error {
	var ratioCols strings.Builder
	for _, c := range RatioColumns {
		ratioCols.WriteString(c)
		ratioCols.WriteString(" REAL,\n")
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS observations (
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			price REAL,
			%s
			PRIMARY KEY (ticker, date)
		)`, ratioCols.String()),
		`CREATE TABLE IF NOT EXISTS allocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			as_of TEXT NOT NULL,
			rule TEXT NOT NULL,
			ticker TEXT NOT NULL,
			weight REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			rule TEXT NOT NULL,
			periods INTEGER NOT NULL,
			total_return REAL NOT NULL,
			geo_avg_period REAL NOT NULL,
			max_dd REAL NOT NULL,
			win_rate REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_observations_date ON observations (date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SavePanel upserts all panel observations in one transaction. NaN values
// are stored as NULL.
func (s *Store) SavePanel(p Panel) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cols := append([]string{"ticker", "date", "price"}, RatioColumns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	q := fmt.Sprintf("INSERT OR REPLACE INTO observations (%s) VALUES (%s)",
		strings.Join(cols, ", "), placeholders)

	stmt, err := tx.Prepare(q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range p.Obs {
		args := make([]any, 0, len(cols))
		args = append(args, o.Ticker, o.Date, nullIfNaN(o.Price))
		for _, v := range o.Ratios {
			args = append(args, nullIfNaN(v))
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert observation %s/%s: %w", o.Ticker, o.Date, err)
		}
	}
	return tx.Commit()
}

// LoadPanel reads the full panel back, NULLs becoming NaN.
func (s *Store) LoadPanel() (Panel, error) {
	cols := append([]string{"ticker", "date", "price"}, RatioColumns...)
	q := fmt.Sprintf("SELECT %s FROM observations ORDER BY ticker, date", strings.Join(cols, ", "))

	rows, err := s.db.Query(q)
	if err != nil {
		return Panel{}, err
	}
	defer rows.Close()

	var p Panel
	for rows.Next() {
		var (
			ticker, date string
			price        sql.NullFloat64
		)
		ratios := make([]sql.NullFloat64, NumRatios)

		dest := make([]any, 0, len(cols))
		dest = append(dest, &ticker, &date, &price)
		for i := range ratios {
			dest = append(dest, &ratios[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return Panel{}, err
		}

		obs := Observation{
			Ticker: ticker,
			Date:   date,
			Price:  nanIfNull(price),
			Ratios: make([]float64, NumRatios),
		}
		for i, r := range ratios {
			obs.Ratios[i] = nanIfNull(r)
		}
		p.Obs = append(p.Obs, obs)
	}
	return p, rows.Err()
}

// SaveAllocation persists one produced allocation, one row per ticker.
func (s *Store) SaveAllocation(asOf, rule string, weights map[string]float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO allocations (created_at, as_of, rule, ticker, weight)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for ticker, w := range weights {
		if _, err := stmt.Exec(now, asOf, rule, ticker, w); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveBacktestRun persists the summary statistics of a backtest.
func (s *Store) SaveBacktestRun(res BacktestResult) error {
	_, err := s.db.Exec(`INSERT INTO backtest_runs
		(created_at, rule, periods, total_return, geo_avg_period, max_dd, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		res.Rule, len(res.Periods), res.TotalReturn, res.GeoAvgPeriod, res.MaxDD, res.WinRate)
	return err
}

// LatestAllocation loads the most recently saved allocation, or an empty map
// when none exists.
func (s *Store) LatestAllocation() (asOf, rule string, weights map[string]float64, err error) {
	row := s.db.QueryRow(`SELECT created_at FROM allocations ORDER BY id DESC LIMIT 1`)
	var createdAt string
	if err = row.Scan(&createdAt); err == sql.ErrNoRows {
		return "", "", map[string]float64{}, nil
	} else if err != nil {
		return "", "", nil, err
	}

	rows, err := s.db.Query(`SELECT as_of, rule, ticker, weight FROM allocations WHERE created_at = ?`, createdAt)
	if err != nil {
		return "", "", nil, err
	}
	defer rows.Close()

	weights = make(map[string]float64)
	for rows.Next() {
		var ticker string
		var w float64
		if err = rows.Scan(&asOf, &rule, &ticker, &w); err != nil {
			return "", "", nil, err
		}
		weights[ticker] = w
	}
	return asOf, rule, weights, rows.Err()
}

func nullIfNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
