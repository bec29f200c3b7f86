package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/correction"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
)

var inf = math.Inf(1)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	name            TEXT NOT NULL,
	model           TEXT NOT NULL,
	group_name      TEXT,
	seed            INTEGER NOT NULL,
	chi2            REAL,
	dof             INTEGER,
	converged       INTEGER NOT NULL,
	status          TEXT,
	overlap_true    REAL,
	overlap_average REAL,
	overlap_rms     REAL,
	correction      REAL,
	uncertainty     REAL,
	scaling         REAL,
	config_json     TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS parameters (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL,
	stage   TEXT NOT NULL,
	name    TEXT NOT NULL,
	value   REAL,
	error   REAL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS scan_chisq (
	run_id  TEXT NOT NULL,
	scan    TEXT NOT NULL,
	chisq   REAL,
	dof     INTEGER NOT NULL,
	PRIMARY KEY (run_id, scan),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS histograms (
	run_id  TEXT NOT NULL,
	name    TEXT NOT NULL,
	data    BLOB NOT NULL,
	PRIMARY KEY (run_id, name),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS toy_results (
	run_id       TEXT NOT NULL,
	idx          INTEGER NOT NULL,
	degenerate   INTEGER NOT NULL,
	overlap_true REAL,
	overlap_fit  REAL,
	overlap_diff REAL,
	fits_json    TEXT,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS best_runs (
	group_name TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS run_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT,
	event       TEXT NOT NULL,
	level       TEXT NOT NULL,
	detail_json TEXT,
	created_at  TEXT NOT NULL
);
`

const runColumns = `run_id, kind, name, model, group_name, seed, chi2, dof, converged, status,
	overlap_true, overlap_average, overlap_rms, correction, uncertainty, scaling, config_json, created_at`

// #endregion schema

// #region store-struct
// Store persists runs and their results in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save-run
// SaveRun inserts rec and its bundle in one transaction. An empty RunID is
// replaced by a fresh UUID and a zero CreatedAt by the current time.
func (s *Store) SaveRun(rec RunRecord, b Bundle) (RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Kind, rec.Name, rec.Model, nullIfEmpty(rec.Group), int64(rec.Seed),
		nullIfNaN(rec.Chi2), rec.Dof, boolInt(rec.Converged), nullIfEmpty(rec.Status),
		nullIfNaN(rec.OverlapTrue), nullIfNaN(rec.OverlapAverage), nullIfNaN(rec.OverlapRMS),
		nullIfNaN(rec.Correction), nullIfNaN(rec.Uncertainty),
		nullIfNaN(rec.Scaling), nullIfEmpty(rec.ConfigJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}

	for _, p := range b.Parameters {
		if _, err := tx.Exec(
			`INSERT INTO parameters (run_id, stage, name, value, error) VALUES (?, ?, ?, ?, ?)`,
			rec.RunID, p.Stage, p.Name, nullIfNaN(p.Value), nullIfNaN(p.Error),
		); err != nil {
			return RunRecord{}, fmt.Errorf("insert parameter %s: %w", p.Name, err)
		}
	}

	for _, c := range b.Scans {
		if _, err := tx.Exec(
			`INSERT INTO scan_chisq (run_id, scan, chisq, dof) VALUES (?, ?, ?, ?)`,
			rec.RunID, c.Scan, nullIfNaN(c.Chisq), c.Dof,
		); err != nil {
			return RunRecord{}, fmt.Errorf("insert chisq %s: %w", c.Scan, err)
		}
	}

	for _, h := range b.Hists {
		data, err := h.MarshalBinary()
		if err != nil {
			return RunRecord{}, fmt.Errorf("encode histogram %s: %w", h.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO histograms (run_id, name, data) VALUES (?, ?, ?)`,
			rec.RunID, h.Name, data,
		); err != nil {
			return RunRecord{}, fmt.Errorf("insert histogram %s: %w", h.Name, err)
		}
	}

	for _, t := range b.Toys {
		// compact rows and fits with non-finite values keep fits_json NULL
		var fits interface{}
		if t.X != (correction.ScanFit{}) || t.Y != (correction.ScanFit{}) {
			if data, err := json.Marshal([2]correction.ScanFit{t.X, t.Y}); err == nil {
				fits = string(data)
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO toy_results (run_id, idx, degenerate, overlap_true, overlap_fit, overlap_diff, fits_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, t.Index, boolInt(t.Degenerate),
			nullIfNaN(t.OverlapTrue), nullIfNaN(t.OverlapFit), nullIfNaN(t.OverlapDiff), fits,
		); err != nil {
			return RunRecord{}, fmt.Errorf("insert toy %d: %w", t.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save-run

// #region get-run
// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListGroup returns the runs of a group in insertion order.
func (s *Store) ListGroup(group string) ([]RunRecord, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM runs WHERE group_name = ? ORDER BY created_at, rowid`, group)
}

func (s *Store) queryRuns(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var group, status, configJSON sql.NullString
	var seed int64
	var converged int
	var createdStr string
	var chi2, overlapTrue, overlapAvg, overlapRMS, corr, uncert, scaling sql.NullFloat64

	err := row.Scan(
		&rec.RunID, &rec.Kind, &rec.Name, &rec.Model, &group, &seed,
		&chi2, &rec.Dof, &converged, &status,
		&overlapTrue, &overlapAvg, &overlapRMS, &corr, &uncert,
		&scaling, &configJSON, &createdStr,
	)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Chi2 = nanIfNull(chi2)
	rec.OverlapTrue = nanIfNull(overlapTrue)
	rec.OverlapAverage = nanIfNull(overlapAvg)
	rec.OverlapRMS = nanIfNull(overlapRMS)
	rec.Correction = nanIfNull(corr)
	rec.Uncertainty = nanIfNull(uncert)
	rec.Scaling = nanIfNull(scaling)
	rec.Group = group.String
	rec.Status = status.String
	rec.ConfigJSON = configJSON.String
	rec.Seed = uint64(seed)
	rec.Converged = converged != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion get-run

// #region get-bundle
// GetParameters returns the parameters of a run for one stage in insertion order.
func (s *Store) GetParameters(runID, stage string) ([]ParameterRow, error) {
	rows, err := s.db.Query(
		`SELECT stage, name, value, error FROM parameters WHERE run_id = ? AND stage = ? ORDER BY id`,
		runID, stage,
	)
	if err != nil {
		return nil, fmt.Errorf("get parameters: %w", err)
	}
	defer rows.Close()

	var out []ParameterRow
	for rows.Next() {
		var p ParameterRow
		var value, perr sql.NullFloat64
		if err := rows.Scan(&p.Stage, &p.Name, &value, &perr); err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		p.Value, p.Error = nanIfNull(value), nanIfNull(perr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetScanChiSq returns the per-scan chi-square rows of a run.
func (s *Store) GetScanChiSq(runID string) ([]fit.ScanChiSq, error) {
	rows, err := s.db.Query(
		`SELECT scan, chisq, dof FROM scan_chisq WHERE run_id = ? ORDER BY rowid`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get chisq: %w", err)
	}
	defer rows.Close()

	var out []fit.ScanChiSq
	for rows.Next() {
		var c fit.ScanChiSq
		var chisq sql.NullFloat64
		if err := rows.Scan(&c.Scan, &chisq, &c.Dof); err != nil {
			return nil, fmt.Errorf("scan chisq: %w", err)
		}
		c.Chisq = nanIfNull(chisq)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetHistogram decodes a stored histogram.
func (s *Store) GetHistogram(runID, name string) (*hist.Hist2D, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM histograms WHERE run_id = ? AND name = ?`, runID, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get histogram %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get histogram %s: %w", name, err)
	}
	h := &hist.Hist2D{Name: name}
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode histogram %s: %w", name, err)
	}
	return h, nil
}

// HistogramNames lists the stored histograms of a run.
func (s *Store) HistogramNames(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM histograms WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list histograms: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan histogram name: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetToys returns the toy rows of a correction run ordered by index.
func (s *Store) GetToys(runID string) ([]correction.ToyResult, error) {
	rows, err := s.db.Query(
		`SELECT idx, degenerate, overlap_true, overlap_fit, overlap_diff, fits_json
		 FROM toy_results WHERE run_id = ? ORDER BY idx`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get toys: %w", err)
	}
	defer rows.Close()

	var out []correction.ToyResult
	for rows.Next() {
		var t correction.ToyResult
		var degenerate int
		var fitsJSON sql.NullString
		var truth, ofit, odiff sql.NullFloat64
		if err := rows.Scan(&t.Index, &degenerate, &truth, &ofit, &odiff, &fitsJSON); err != nil {
			return nil, fmt.Errorf("scan toy: %w", err)
		}
		t.OverlapTrue, t.OverlapFit, t.OverlapDiff = nanIfNull(truth), nanIfNull(ofit), nanIfNull(odiff)
		t.Degenerate = degenerate != 0
		if fitsJSON.Valid {
			var fits [2]correction.ScanFit
			if err := json.Unmarshal([]byte(fitsJSON.String), &fits); err != nil {
				return nil, fmt.Errorf("unmarshal toy fits: %w", err)
			}
			t.X, t.Y = fits[0], fits[1]
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// #endregion get-bundle

// #region best
// SetBest points group at runID.
func (s *Store) SetBest(group, runID string) error {
	_, err := s.db.Exec(
		`INSERT INTO best_runs (group_name, run_id) VALUES (?, ?)
		 ON CONFLICT(group_name) DO UPDATE SET run_id = excluded.run_id`,
		group, runID,
	)
	if err != nil {
		return fmt.Errorf("set best: %w", err)
	}
	return nil
}

// GetBest reads the best run of group.
func (s *Store) GetBest(group string) (RunRecord, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM best_runs WHERE group_name = ?`, group).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get best %s: %w", group, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get best %s: %w", group, err)
	}
	return s.GetRun(runID)
}

// SelectBest compares the fit runs of group by Σchisq/Σdof over their stored
// scans, moves the best pointer to the winner and returns it.
func (s *Store) SelectBest(group string) (RunRecord, error) {
	runs, err := s.ListGroup(group)
	if err != nil {
		return RunRecord{}, err
	}
	var attempts []fit.Attempt
	var candidates []RunRecord
	for _, r := range runs {
		if r.Kind != "fit" {
			continue
		}
		scans, err := s.GetScanChiSq(r.RunID)
		if err != nil {
			return RunRecord{}, err
		}
		a := fit.Attempt{ID: r.RunID}
		copy(a.Scans[:], scans)
		attempts = append(attempts, a)
		candidates = append(candidates, r)
	}
	i, err := fit.SelectBest(attempts)
	if err != nil {
		return RunRecord{}, fmt.Errorf("select best %s: %w", group, err)
	}
	if err := s.SetBest(group, candidates[i].RunID); err != nil {
		return RunRecord{}, err
	}
	return candidates[i], nil
}

// #endregion best

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullIfNaN writes NaN as NULL; SQLite has no NaN.
func nullIfNaN(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// nanIfNull reads NULL back as NaN.
func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
