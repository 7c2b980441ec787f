package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the report database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

// createTable creates the reports table
func (s *SQLiteStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		scenario TEXT NOT NULL,
		weights_label TEXT NOT NULL,
		w_e REAL NOT NULL,
		w_r REAL NOT NULL,
		algorithm TEXT NOT NULL,
		run INTEGER NOT NULL,
		fitness REAL NOT NULL,
		energy_total_j REAL NOT NULL,
		reliability_penalty REAL NOT NULL,
		geometric_penalty REAL NOT NULL,
		network_lifetime REAL NOT NULL,
		vector TEXT NOT NULL,
		request_id TEXT,
		execution_time REAL,
		convergence TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reports_group ON reports(scenario, weights_label, algorithm);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);
	`

	_, err := s.db.Exec(query)
	return err
}

// Record stores a report and returns its id
func (s *SQLiteStore) Record(ctx context.Context, r Report) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	vector, err := json.Marshal(r.Vector)
	if err != nil {
		return 0, fmt.Errorf("failed to encode vector: %w", err)
	}
	var convergence sql.NullString
	if r.Convergence != nil {
		data, err := json.Marshal(r.Convergence)
		if err != nil {
			return 0, fmt.Errorf("failed to encode convergence: %w", err)
		}
		convergence = sql.NullString{String: string(data), Valid: true}
	}

	query := `
	INSERT INTO reports (
		timestamp, scenario, weights_label, w_e, w_r, algorithm, run, fitness,
		energy_total_j, reliability_penalty, geometric_penalty, network_lifetime,
		vector, request_id, execution_time, convergence
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		r.Timestamp,
		r.Scenario,
		r.WeightsLabel,
		r.Weights.Energy,
		r.Weights.Reliability,
		r.Algorithm,
		r.Run,
		r.Fitness,
		r.Metrics.TotalEnergyJ,
		r.Metrics.ReliabilityPenalty,
		r.Metrics.GeometricPenalty,
		r.Metrics.NetworkLifetime,
		string(vector),
		r.RequestID,
		r.ExecutionTime,
		convergence,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List retrieves reports with filters, newest first
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Report, error) {
	whereClause, args := buildWhereClause(f)

	query := fmt.Sprintf(`
		SELECT
			id, timestamp, scenario, weights_label, w_e, w_r, algorithm, run, fitness,
			energy_total_j, reliability_penalty, geometric_penalty, network_lifetime,
			vector, COALESCE(request_id, ''), execution_time, convergence
		FROM reports
		%s
		ORDER BY timestamp DESC, id DESC
	`, whereClause)
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var vector string
		var execTime sql.NullFloat64
		var convergence sql.NullString
		err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.Scenario,
			&r.WeightsLabel,
			&r.Weights.Energy,
			&r.Weights.Reliability,
			&r.Algorithm,
			&r.Run,
			&r.Fitness,
			&r.Metrics.TotalEnergyJ,
			&r.Metrics.ReliabilityPenalty,
			&r.Metrics.GeometricPenalty,
			&r.Metrics.NetworkLifetime,
			&vector,
			&r.RequestID,
			&execTime,
			&convergence,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vector), &r.Vector); err != nil {
			return nil, fmt.Errorf("report %d: failed to decode vector: %w", r.ID, err)
		}
		if execTime.Valid {
			r.ExecutionTime = &execTime.Float64
		}
		if convergence.Valid {
			if err := json.Unmarshal([]byte(convergence.String), &r.Convergence); err != nil {
				return nil, fmt.Errorf("report %d: failed to decode convergence: %w", r.ID, err)
			}
		}
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// Summaries aggregates reports per scenario, weights label and algorithm
func (s *SQLiteStore) Summaries(ctx context.Context) ([]Summary, error) {
	query := `
		SELECT
			scenario, weights_label, algorithm,
			COUNT(*),
			SUM(fitness), SUM(fitness * fitness), MIN(fitness),
			SUM(energy_total_j), SUM(energy_total_j * energy_total_j),
			SUM(network_lifetime), SUM(network_lifetime * network_lifetime),
			AVG(execution_time)
		FROM reports
		GROUP BY scenario, weights_label, algorithm
		ORDER BY scenario, weights_label, algorithm
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var fit, fit2, en, en2, life, life2 float64
		var execMean sql.NullFloat64
		err := rows.Scan(
			&sum.Scenario,
			&sum.WeightsLabel,
			&sum.Algorithm,
			&sum.Count,
			&fit, &fit2, &sum.FitnessMin,
			&en, &en2,
			&life, &life2,
			&execMean,
		)
		if err != nil {
			return nil, err
		}
		sum.FitnessMean, sum.FitnessStd = meanStd(sum.Count, fit, fit2)
		sum.EnergyMeanJ, sum.EnergyStdJ = meanStd(sum.Count, en, en2)
		sum.LifetimeMean, sum.LifetimeStd = meanStd(sum.Count, life, life2)
		if execMean.Valid {
			sum.ExecutionTimeMean = &execMean.Float64
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// meanStd derives the mean and sample standard deviation from running sums
func meanStd(n int64, sum, sumSq float64) (mean, std float64) {
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	variance := (sumSq - float64(n)*mean*mean) / float64(n-1)
	return mean, math.Sqrt(math.Max(variance, 0))
}

// buildWhereClause builds WHERE clause with filters
func buildWhereClause(f Filter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Scenario != "" {
		conditions = append(conditions, "scenario = ?")
		args = append(args, f.Scenario)
	}
	if f.WeightsLabel != "" {
		conditions = append(conditions, "weights_label = ?")
		args = append(args, f.WeightsLabel)
	}
	if f.Algorithm != "" {
		conditions = append(conditions, "algorithm = ?")
		args = append(args, f.Algorithm)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
