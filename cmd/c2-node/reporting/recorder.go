package reporting

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Recorder persists cycles, assignments and engagement statuses to SQLite,
// keyed by run id. Write failures are logged once and never reach the loop.
type Recorder struct {
	controllers.NopReporter

	db     *sql.DB
	runID  string
	now    func() time.Time
	err    error
	closed bool
}

// RunRecord is the stored row for one run
type RunRecord struct {
	RunID            string
	Scenario         string
	StartedAt        time.Time
	EndedAt          sql.NullTime
	Cycles           uint64
	AssignmentsSent  uint64
	SendFailures     uint64
	StatusesReceived uint64
	ReceiveFailures  uint64
	CycleErrors      uint64
}

// OpenRecorder opens (or creates) the database at path, applies pending
// migrations and registers a run
func OpenRecorder(path, runID, scenario string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Recorder{db: db, runID: runID, now: time.Now}
	if _, err := db.Exec(
		`INSERT INTO runs (run_id, scenario, started_at) VALUES (?, ?, ?)`,
		runID, scenario, r.now().UTC(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("register run %s: %w", runID, err)
	}
	return r, nil
}

// migrateUp runs all pending migrations. The migrate instance is not closed
// because that would close db.
func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger routes migration output to the debug log
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.Debugf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return false
}

// RunID returns the run this recorder writes under
func (r *Recorder) RunID() string {
	return r.runID
}

// Err returns the first write error, if any
func (r *Recorder) Err() error {
	return r.err
}

func (r *Recorder) ReportAssignment(cycle uint64, a protocol.TargetAssignment, score core.ThreatScore) {
	r.exec(`INSERT INTO assignments
		(run_id, cycle, target_id, range_m, azimuth_rad, elevation_rad, velocity_ms, priority, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, cycle, a.TargetID, a.RangeM, a.AzimuthRad, a.ElevationRad, a.VelocityMs, a.Priority, score.Score)
}

func (r *Recorder) ReportStatus(cycle uint64, s protocol.EngagementStatus) {
	r.exec(`INSERT INTO statuses
		(run_id, cycle, target_id, state, firing, lead_angle_rad, time_to_impact_s)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.runID, cycle, s.TargetID, s.State, s.Firing, s.LeadAngleRad, s.TimeToImpactS)
}

func (r *Recorder) ReportCycle(stats controllers.CycleStats) {
	var cycleErr sql.NullString
	if stats.Err != nil {
		cycleErr = sql.NullString{String: stats.Err.Error(), Valid: true}
	}
	var topID sql.NullInt64
	var topScore sql.NullFloat64
	if stats.ActiveTracks > 0 {
		topID = sql.NullInt64{Int64: int64(stats.TopTrackID), Valid: true}
		topScore = sql.NullFloat64{Float64: stats.TopScore, Valid: true}
	}

	r.exec(`INSERT INTO cycles
		(run_id, cycle, timestamp, dt_s, active_tracks, top_track_id, top_score, assignment_sent, status_received, latency_us, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, stats.Cycle, stats.Timestamp.UTC(), stats.DtS, stats.ActiveTracks, topID, topScore,
		stats.AssignmentSent, stats.StatusReceived, stats.Latency.Microseconds(), cycleErr)
}

func (r *Recorder) ReportError(cycle uint64, component string, err error) {
	if err == nil {
		return
	}
	r.exec(`INSERT INTO component_errors (run_id, cycle, component, message) VALUES (?, ?, ?, ?)`,
		r.runID, cycle, component, err.Error())
}

// Finish stores the coordinator's totals on the run row
func (r *Recorder) Finish(totals controllers.Totals) error {
	if r.closed {
		return nil
	}
	_, err := r.db.Exec(`UPDATE runs SET
		ended_at = ?, cycles = ?, assignments_sent = ?, send_failures = ?,
		statuses_received = ?, receive_failures = ?, cycle_errors = ?
		WHERE run_id = ?`,
		r.now().UTC(), totals.Cycles, totals.AssignmentsSent, totals.SendFailures,
		totals.StatusesReceived, totals.ReceiveFailures, totals.CycleErrors, r.runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.runID, err)
	}
	return nil
}

// Run loads the stored row for a run
func (r *Recorder) Run(runID string) (RunRecord, error) {
	var rec RunRecord
	err := r.db.QueryRow(`SELECT run_id, scenario, started_at, ended_at, cycles, assignments_sent,
		send_failures, statuses_received, receive_failures, cycle_errors
		FROM runs WHERE run_id = ?`, runID).Scan(
		&rec.RunID, &rec.Scenario, &rec.StartedAt, &rec.EndedAt, &rec.Cycles, &rec.AssignmentsSent,
		&rec.SendFailures, &rec.StatusesReceived, &rec.ReceiveFailures, &rec.CycleErrors)
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	return rec, nil
}

// Count returns the number of rows in table for the recorder's run.
// table must be one of cycles, assignments, statuses or component_errors.
func (r *Recorder) Count(table string) (int, error) {
	switch table {
	case "cycles", "assignments", "statuses", "component_errors":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE run_id = ?`, r.runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Close closes the database
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

func (r *Recorder) exec(query string, args ...interface{}) {
	if r.closed {
		return
	}
	if _, err := r.db.Exec(query, args...); err != nil && r.err == nil {
		r.err = err
		logger.Warnf("Recorder write failed, further failures are not logged: %v", err)
	}
}
