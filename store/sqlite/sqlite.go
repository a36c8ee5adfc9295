/*
Package sqlite provides a SQLite-backed implementation of roster.Repository.

PURPOSE:
  Persists the anchor configuration, capacity rules, staff roster,
  renewal backlog, assignments, and schedule requests. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

COMMIT-TIME RE-VALIDATION:
  The engine evaluates against snapshots, so two concurrent callers can
  both see "ok" for the last free slot. Every write here runs inside a
  database transaction and re-checks the contended invariant before
  committing:
  - CommitAssignments recounts (category, cycle) against MaxPerCycle
  - ApproveRequest re-runs the staffing evaluation against the CURRENT
    approved set
  A failed re-check rolls back and returns roster.ErrCommitRace; the
  caller re-evaluates against a fresh snapshot and retries.

KEY TABLES:
  config              Single-row anchor configuration (JSON)
  capacity_rules      Per-category ceilings and blackout months
  staff               Active-roster projection
  rank_minimums       Minimum staffing per rank
  obligations         Renewal backlog
  assignments         Obligation-to-cycle commitments
  requests            Pending/approved schedule requests

CONCURRENCY:
  Uses sync.Mutex around write transactions. In production with
  PostgreSQL, row locks on the contended keys handle this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  repo, err := sqlite.New("./data/roster.db")
  if err != nil {
      log.Fatal(err)
  }
  defer repo.Close()

SEE ALSO:
  - roster/store.go: Repository interface and commit contract
  - roster/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/roster-engine/roster"
)

// Store implements roster.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Anchor configuration (single row, JSON payload)
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		payload_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS capacity_rules (
		category TEXT PRIMARY KEY,
		max_per_cycle INTEGER NOT NULL,
		blackout_months_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		rank TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS rank_minimums (
		rank TEXT PRIMARY KEY,
		minimum INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		due_by TEXT NOT NULL,
		earliest_eligible TEXT NOT NULL
	);

	-- One assignment per obligation, enforced by the primary key
	CREATE TABLE IF NOT EXISTS assignments (
		obligation_id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		cycle_number INTEGER NOT NULL,
		cycle_year INTEGER NOT NULL,
		assigned_at TEXT NOT NULL
	);

	-- Hot path for the capacity recount at commit time
	CREATE INDEX IF NOT EXISTS idx_assignments_slot
		ON assignments(category, cycle_year, cycle_number);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		rank TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		requested_at TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'approved'))
	);

	CREATE INDEX IF NOT EXISTS idx_requests_subject
		ON requests(subject_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONFIGURATION
// =============================================================================

const anchorKey = "anchor"

// SaveAnchor validates and persists the cycle-grid configuration.
func (s *Store) SaveAnchor(ctx context.Context, cfg roster.AnchorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(anchorRow{
		Number:             cfg.AnchorNumber,
		Year:               cfg.AnchorYear,
		Start:              cfg.AnchorStart.String(),
		CycleDays:          cfg.CycleDays,
		CyclesPerYear:      cfg.CyclesPerYear,
		PublishOffsetDays:  cfg.PublishOffsetDays,
		DeadlineOffsetDays: cfg.DeadlineOffsetDays,
	})
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO config (key, payload_json) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload_json = excluded.payload_json`,
		anchorKey, string(payload))
	return err
}

type anchorRow struct {
	Number             int    `json:"number"`
	Year               int    `json:"year"`
	Start              string `json:"start"`
	CycleDays          int    `json:"cycle_days"`
	CyclesPerYear      int    `json:"cycles_per_year"`
	PublishOffsetDays  int    `json:"publish_offset_days"`
	DeadlineOffsetDays int    `json:"deadline_offset_days"`
}

func (s *Store) Anchor(ctx context.Context) (roster.AnchorConfig, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM config WHERE key = ?`, anchorKey).Scan(&payload)
	if err == sql.ErrNoRows {
		return roster.AnchorConfig{}, &roster.ConfigurationError{
			Subject: "anchor", Field: "config", Reason: "not configured",
		}
	}
	if err != nil {
		return roster.AnchorConfig{}, err
	}

	var row anchorRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return roster.AnchorConfig{}, err
	}
	start, err := roster.ParseDate(row.Start)
	if err != nil {
		return roster.AnchorConfig{}, err
	}
	return roster.AnchorConfig{
		AnchorNumber:       row.Number,
		AnchorYear:         row.Year,
		AnchorStart:        start,
		CycleDays:          row.CycleDays,
		CyclesPerYear:      row.CyclesPerYear,
		PublishOffsetDays:  row.PublishOffsetDays,
		DeadlineOffsetDays: row.DeadlineOffsetDays,
	}, nil
}

const policyKey = "policy"

// SaveConfigDocument stores the raw JSON configuration document so the
// renewal windows and other policy sections survive a restart. The anchor
// and rules are still persisted in their own tables; this is the source
// document they were parsed from.
func (s *Store) SaveConfigDocument(ctx context.Context, raw string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, payload_json) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload_json = excluded.payload_json`,
		policyKey, raw)
	return err
}

// ConfigDocument returns the stored configuration document, or "" when
// none has been saved yet.
func (s *Store) ConfigDocument(ctx context.Context) (string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM config WHERE key = ?`, policyKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Reset drops all data. Dev and demo use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"config", "capacity_rules", "staff", "rank_minimums",
			"obligations", "assignments", "requests",
		} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveRules replaces the capacity rule set.
func (s *Store) SaveRules(ctx context.Context, rules []roster.CapacityRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM capacity_rules`); err != nil {
			return err
		}
		for _, r := range rules {
			months, err := json.Marshal(r.BlackoutMonths)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO capacity_rules (category, max_per_cycle, blackout_months_json) VALUES (?, ?, ?)`,
				string(r.Category), r.MaxPerCycle, string(months)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveStaff replaces the roster projection.
func (s *Store) SaveStaff(ctx context.Context, staff []roster.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM staff`); err != nil {
			return err
		}
		for _, m := range staff {
			active := 0
			if m.Active {
				active = 1
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO staff (id, rank, active) VALUES (?, ?, ?)`,
				string(m.ID), string(m.Rank), active); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveMinimums replaces the per-rank staffing minimums.
func (s *Store) SaveMinimums(ctx context.Context, minimums map[roster.Rank]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rank_minimums`); err != nil {
			return err
		}
		for rank, min := range minimums {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rank_minimums (rank, minimum) VALUES (?, ?)`,
				string(rank), min); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveObligations adds backlog entries, ignoring ids already present so
// backlog generation stays idempotent.
func (s *Store) SaveObligations(ctx context.Context, obligations []roster.RenewalObligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ob := range obligations {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO obligations (id, category, owner_id, due_by, earliest_eligible)
				 VALUES (?, ?, ?, ?, ?)`,
				string(ob.ID), string(ob.Category), string(ob.OwnerID),
				ob.DueBy.String(), ob.EarliestEligible.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveObligations drops satisfied backlog entries.
func (s *Store) RemoveObligations(ctx context.Context, ids []roster.ObligationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM obligations WHERE id = ?`, string(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot reads all current commitments in one transaction, so the
// engine evaluates against a consistent view.
func (s *Store) Snapshot(ctx context.Context) (*roster.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	snap := &roster.Snapshot{MinimumByRank: make(map[roster.Rank]int)}

	if snap.Rules, err = readRules(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Staff, err = readStaff(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Obligations, err = readObligations(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Assignments, err = readAssignments(ctx, tx); err != nil {
		return nil, err
	}
	if err = readMinimums(ctx, tx, snap.MinimumByRank); err != nil {
		return nil, err
	}
	if snap.Pending, err = readRequests(ctx, tx, "pending"); err != nil {
		return nil, err
	}
	if snap.Approved, err = readRequests(ctx, tx, "approved"); err != nil {
		return nil, err
	}
	return snap, nil
}

func readRules(ctx context.Context, tx *sql.Tx) ([]roster.CapacityRule, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT category, max_per_cycle, blackout_months_json FROM capacity_rules ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []roster.CapacityRule
	for rows.Next() {
		var category, months string
		var max int
		if err := rows.Scan(&category, &max, &months); err != nil {
			return nil, err
		}
		rule := roster.CapacityRule{Category: roster.Category(category), MaxPerCycle: max}
		if err := json.Unmarshal([]byte(months), &rule.BlackoutMonths); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func readStaff(ctx context.Context, tx *sql.Tx) ([]roster.StaffMember, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, rank, active FROM staff ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []roster.StaffMember
	for rows.Next() {
		var id, rank string
		var active int
		if err := rows.Scan(&id, &rank, &active); err != nil {
			return nil, err
		}
		staff = append(staff, roster.StaffMember{
			ID: roster.StaffID(id), Rank: roster.Rank(rank), Active: active == 1,
		})
	}
	return staff, rows.Err()
}

func readObligations(ctx context.Context, tx *sql.Tx) ([]roster.RenewalObligation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, category, owner_id, due_by, earliest_eligible FROM obligations ORDER BY due_by, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []roster.RenewalObligation
	for rows.Next() {
		var id, category, owner, due, eligible string
		if err := rows.Scan(&id, &category, &owner, &due, &eligible); err != nil {
			return nil, err
		}
		dueBy, err := roster.ParseDate(due)
		if err != nil {
			return nil, err
		}
		earliest, err := roster.ParseDate(eligible)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, roster.RenewalObligation{
			ID:               roster.ObligationID(id),
			Category:         roster.Category(category),
			OwnerID:          roster.StaffID(owner),
			DueBy:            dueBy,
			EarliestEligible: earliest,
		})
	}
	return obligations, rows.Err()
}

func readAssignments(ctx context.Context, tx *sql.Tx) ([]roster.Assignment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT obligation_id, category, cycle_number, cycle_year, assigned_at
		 FROM assignments ORDER BY cycle_year, cycle_number, obligation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []roster.Assignment
	for rows.Next() {
		var id, category, assignedAt string
		var number, year int
		if err := rows.Scan(&id, &category, &number, &year, &assignedAt); err != nil {
			return nil, err
		}
		at, err := roster.ParseDate(assignedAt)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, roster.Assignment{
			ObligationID: roster.ObligationID(id),
			Category:     roster.Category(category),
			CycleNumber:  number,
			CycleYear:    year,
			AssignedAt:   at,
		})
	}
	return assignments, rows.Err()
}

func readMinimums(ctx context.Context, tx *sql.Tx, out map[roster.Rank]int) error {
	rows, err := tx.QueryContext(ctx, `SELECT rank, minimum FROM rank_minimums`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rank string
		var min int
		if err := rows.Scan(&rank, &min); err != nil {
			return err
		}
		out[roster.Rank(rank)] = min
	}
	return rows.Err()
}

func readRequests(ctx context.Context, tx *sql.Tx, status string) ([]roster.ScheduleRequest, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, subject_id, rank, start_date, end_date, kind, requested_at
		 FROM requests WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []roster.ScheduleRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(rows *sql.Rows) (roster.ScheduleRequest, error) {
	var id, subject, rank, start, end, kind, requestedAt string
	if err := rows.Scan(&id, &subject, &rank, &start, &end, &kind, &requestedAt); err != nil {
		return roster.ScheduleRequest{}, err
	}
	startDate, err := roster.ParseDate(start)
	if err != nil {
		return roster.ScheduleRequest{}, err
	}
	endDate, err := roster.ParseDate(end)
	if err != nil {
		return roster.ScheduleRequest{}, err
	}
	reqAt, err := roster.ParseDate(requestedAt)
	if err != nil {
		return roster.ScheduleRequest{}, err
	}
	return roster.ScheduleRequest{
		ID:          roster.RequestID(id),
		SubjectID:   roster.StaffID(subject),
		Rank:        roster.Rank(rank),
		Dates:       roster.NewDateRange(startDate, endDate),
		Kind:        roster.RequestKind(kind),
		RequestedAt: reqAt,
	}, nil
}

// =============================================================================
// COMMITS WITH RE-VALIDATION
// =============================================================================

// CommitAssignments recounts each touched (category, cycle) slot inside
// the transaction before inserting. All-or-nothing.
func (s *Store) CommitAssignments(ctx context.Context, assignments []roster.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, a := range assignments {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM assignments WHERE obligation_id = ?`,
				string(a.ObligationID)).Scan(&exists); err != nil {
				return err
			}
			if exists > 0 {
				return fmt.Errorf("obligation %s: %w", a.ObligationID, roster.ErrDuplicateAssignment)
			}

			var max sql.NullInt64
			if err := tx.QueryRowContext(ctx,
				`SELECT max_per_cycle FROM capacity_rules WHERE category = ?`,
				string(a.Category)).Scan(&max); err != nil && err != sql.ErrNoRows {
				return err
			}

			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM assignments WHERE category = ? AND cycle_number = ? AND cycle_year = ?`,
				string(a.Category), a.CycleNumber, a.CycleYear).Scan(&count); err != nil {
				return err
			}
			if !max.Valid || int64(count+1) > max.Int64 {
				return &roster.CommitRaceError{
					Invariant: "capacity",
					Detail: fmt.Sprintf("category %q in %s would hold %d of %d",
						a.Category, roster.CycleCode(a.CycleNumber, a.CycleYear), count+1, max.Int64),
				}
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO assignments (obligation_id, category, cycle_number, cycle_year, assigned_at)
				 VALUES (?, ?, ?, ?, ?)`,
				string(a.ObligationID), string(a.Category), a.CycleNumber, a.CycleYear,
				a.AssignedAt.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubmitRequest records a request as pending.
func (s *Store) SubmitRequest(ctx context.Context, req roster.ScheduleRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM requests WHERE id = ?`, string(req.ID)).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("request %s: %w", req.ID, roster.ErrDuplicateRequest)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO requests (id, subject_id, rank, start_date, end_date, kind, requested_at, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')`,
			string(req.ID), string(req.SubjectID), string(req.Rank),
			req.Dates.Start.String(), req.Dates.End.String(),
			string(req.Kind), req.RequestedAt.String())
		return err
	})
}

// ApproveRequest re-runs the staffing evaluation against the current
// approved set inside the transaction. The losing side of a race gets
// roster.ErrCommitRace and the request stays pending.
func (s *Store) ApproveRequest(ctx context.Context, id roster.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, subject_id, rank, start_date, end_date, kind, requested_at
			 FROM requests WHERE id = ? AND status = 'pending'`, string(id))
		if err != nil {
			return err
		}
		var request roster.ScheduleRequest
		found := false
		for rows.Next() {
			if request, err = scanRequest(rows); err != nil {
				rows.Close()
				return err
			}
			found = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("request %s: %w", id, roster.ErrRequestNotFound)
		}

		approved, err := readRequests(ctx, tx, "approved")
		if err != nil {
			return err
		}
		staff, err := readStaff(ctx, tx)
		if err != nil {
			return err
		}
		minimums := make(map[roster.Rank]int)
		if err := readMinimums(ctx, tx, minimums); err != nil {
			return err
		}

		result, err := roster.NewEligibilityEvaluator().Evaluate(staff, request, approved, minimums)
		if err != nil {
			return err
		}
		if !result.OK {
			return &roster.CommitRaceError{
				Invariant: "staffing",
				Detail:    fmt.Sprintf("approving %s would break minimum staffing over %s", id, request.Dates),
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE requests SET status = 'approved' WHERE id = ?`, string(id))
		return err
	})
}

// RejectRequest removes a pending request.
func (s *Store) RejectRequest(ctx context.Context, id roster.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM requests WHERE id = ? AND status = 'pending'`, string(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("request %s: %w", id, roster.ErrRequestNotFound)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Compile-time check that Store implements roster.Repository.
var _ roster.Repository = (*Store)(nil)
