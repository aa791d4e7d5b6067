// Package postgres provides pgx-backed persistence for workouts, their
// structured steps, athlete thresholds, and the event outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workout/internal/domain"
	"example.com/workout/internal/events"
)

// Repository implements domain.WorkoutRepository on a pgx pool. Every
// operation runs inside a transaction scoped to the caller's tenant via
// set_config, so row-level security policies apply.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const workoutColumns = `workout_id, tenant_id, user_id, sport, total_distance_m, total_duration_s, notes,
        parse_status, parse_confidence, parse_diagnostic, raw_candidate, version, created_at, updated_at`

// Create persists the workout record and the workout.created outbox event in
// a single transaction.
func (r *Repository) Create(ctx context.Context, rec domain.WorkoutRecord) (err error) {
	tx, err := r.beginTenantTx(ctx, rec.TenantID)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insert = `INSERT INTO workouts (workout_id, tenant_id, user_id, sport, total_distance_m, total_duration_s, notes,
            parse_status, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err = tx.Exec(ctx, insert,
		rec.ID, rec.TenantID, rec.UserID, rec.Sport,
		rec.TotalDistanceMeters, rec.TotalDurationSeconds, rec.Notes,
		rec.ParseStatus, rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return err
	}

	err = insertOutbox(ctx, tx, rec.TenantID, rec.ID, events.TypeWorkoutCreated, events.WorkoutCreated{
		WorkoutID:            rec.ID,
		TenantID:             rec.TenantID,
		UserID:               rec.UserID,
		Sport:                rec.Sport,
		TotalDistanceMeters:  rec.TotalDistanceMeters,
		TotalDurationSeconds: rec.TotalDurationSeconds,
		HasNotes:             rec.Notes != "",
		CreatedAt:            rec.CreatedAt,
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get loads one workout with its authored steps, or nil when absent.
func (r *Repository) Get(ctx context.Context, tenantID, workoutID string) (*domain.WorkoutRecord, error) {
	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec, err := scanWorkout(tx.QueryRow(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE tenant_id=$1 AND workout_id=$2`,
		tenantID, workoutID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	rec.Steps, err = loadSteps(ctx, tx, workoutID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByUser pages workouts newest-first using a (created_at, id) cursor.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.WorkoutRecord, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}

	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE tenant_id=$1 AND user_id=$2`
	args := []any{tenantID, userID}
	if cursor != nil {
		query += ` AND (created_at, workout_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, workout_id DESC LIMIT ` + strconv.Itoa(limit+1)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	records := make([]domain.WorkoutRecord, 0, limit)
	for rows.Next() {
		rec, err := scanWorkout(rows)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return records, next, nil
}

// ReplaceSteps swaps the workout's step list and applies the parse outcome
// as one committed transaction, so no reader observes a partially replaced
// list. The parse-completed outbox event rides in the same transaction.
func (r *Repository) ReplaceSteps(ctx context.Context, tenantID, workoutID string, steps []domain.WorkoutStep, outcome domain.ParseOutcome) (err error) {
	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var userID string
	if err = tx.QueryRow(ctx,
		`SELECT user_id FROM workouts WHERE tenant_id=$1 AND workout_id=$2`,
		tenantID, workoutID).Scan(&userID); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM workout_steps WHERE workout_id=$1`, workoutID); err != nil {
		return err
	}

	const insertStep = `INSERT INTO workout_steps (workout_id, step_order, name, duration_s, distance_m, intensity, target_type, repeat_count, is_recovery)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	for _, step := range steps {
		if _, err = tx.Exec(ctx, insertStep,
			workoutID, step.Order, step.Name, step.DurationSeconds, step.DistanceMeters,
			step.Intensity, step.TargetType, step.Repeat, step.IsRecovery,
		); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if err = applyOutcome(ctx, tx, tenantID, workoutID, outcome, now); err != nil {
		return err
	}

	err = insertOutbox(ctx, tx, tenantID, workoutID, events.TypeWorkoutParseCompleted, events.WorkoutParseCompleted{
		WorkoutID:  workoutID,
		TenantID:   tenantID,
		UserID:     userID,
		Status:     string(outcome.Status),
		StepCount:  len(steps),
		Confidence: outcome.Confidence,
		Diagnostic: derefOrEmpty(outcome.Diagnostic),
		OccurredAt: now,
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateParseState applies a terminal parse outcome without touching the
// step list.
func (r *Repository) UpdateParseState(ctx context.Context, tenantID, workoutID string, outcome domain.ParseOutcome) (err error) {
	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var userID string
	var stepCount int
	if err = tx.QueryRow(ctx,
		`SELECT w.user_id, (SELECT COUNT(*) FROM workout_steps s WHERE s.workout_id = w.workout_id)
           FROM workouts w WHERE w.tenant_id=$1 AND w.workout_id=$2`,
		tenantID, workoutID).Scan(&userID, &stepCount); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err = applyOutcome(ctx, tx, tenantID, workoutID, outcome, now); err != nil {
		return err
	}

	err = insertOutbox(ctx, tx, tenantID, workoutID, events.TypeWorkoutParseCompleted, events.WorkoutParseCompleted{
		WorkoutID:  workoutID,
		TenantID:   tenantID,
		UserID:     userID,
		Status:     string(outcome.Status),
		StepCount:  stepCount,
		Confidence: outcome.Confidence,
		Diagnostic: derefOrEmpty(outcome.Diagnostic),
		OccurredAt: now,
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ResetParseState returns the record to unparsed ahead of a re-parse.
// Previously persisted steps stay in place until replaced.
func (r *Repository) ResetParseState(ctx context.Context, tenantID, workoutID string) (err error) {
	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE workouts
            SET parse_status=$1, parse_confidence=NULL, parse_diagnostic=NULL, raw_candidate=NULL, updated_at=NOW()
          WHERE tenant_id=$2 AND workout_id=$3`,
		domain.ParseStatusUnparsed, tenantID, workoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWorkoutNotFound
	}

	return tx.Commit(ctx)
}

// GetThresholds loads the per-user thresholds, or nil when none are stored.
func (r *Repository) GetThresholds(ctx context.Context, tenantID, userID string) (*domain.Thresholds, error) {
	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var th domain.Thresholds
	err = tx.QueryRow(ctx,
		`SELECT threshold_pace_s_per_m, ftp_watts, threshold_hr_bpm, updated_at
           FROM athlete_thresholds WHERE tenant_id=$1 AND user_id=$2`,
		tenantID, userID).Scan(&th.ThresholdPaceSecPerMeter, &th.FTPWatts, &th.ThresholdHRBPM, &th.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &th, nil
}

// UpsertThresholds stores the thresholds exactly as supplied; absent fields
// are stored as NULL, never defaulted.
func (r *Repository) UpsertThresholds(ctx context.Context, tenantID, userID string, th domain.Thresholds) (err error) {
	tx, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO athlete_thresholds (tenant_id, user_id, threshold_pace_s_per_m, ftp_watts, threshold_hr_bpm, updated_at)
         VALUES ($1,$2,$3,$4,$5,NOW())
         ON CONFLICT (tenant_id, user_id) DO UPDATE
            SET threshold_pace_s_per_m = EXCLUDED.threshold_pace_s_per_m,
                ftp_watts = EXCLUDED.ftp_watts,
                threshold_hr_bpm = EXCLUDED.threshold_hr_bpm,
                updated_at = NOW()`,
		tenantID, userID, th.ThresholdPaceSecPerMeter, th.FTPWatts, th.ThresholdHRBPM)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) beginTenantTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

func applyOutcome(ctx context.Context, tx pgx.Tx, tenantID, workoutID string, outcome domain.ParseOutcome, now time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE workouts
            SET parse_status=$1, parse_confidence=$2, parse_diagnostic=$3, raw_candidate=$4, updated_at=$5
          WHERE tenant_id=$6 AND workout_id=$7`,
		outcome.Status, outcome.Confidence, outcome.Diagnostic, outcome.Raw, now, tenantID, workoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWorkoutNotFound
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, tenantID, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
         VALUES ($1,'workout',$2,$3,$4,$5,$6)`,
		tenantID, aggregateID, eventType, events.TopicWorkoutEvents, aggregateID, body)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row rowScanner) (*domain.WorkoutRecord, error) {
	var rec domain.WorkoutRecord
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.UserID, &rec.Sport,
		&rec.TotalDistanceMeters, &rec.TotalDurationSeconds, &rec.Notes,
		&rec.ParseStatus, &rec.ParseConfidence, &rec.ParseDiagnostic, &rec.RawCandidate,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func loadSteps(ctx context.Context, tx pgx.Tx, workoutID string) ([]domain.WorkoutStep, error) {
	rows, err := tx.Query(ctx,
		`SELECT step_order, name, duration_s, distance_m, intensity, target_type, repeat_count, is_recovery
           FROM workout_steps WHERE workout_id=$1 ORDER BY step_order`,
		workoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.WorkoutStep
	for rows.Next() {
		var step domain.WorkoutStep
		if err := rows.Scan(&step.Order, &step.Name, &step.DurationSeconds, &step.DistanceMeters,
			&step.Intensity, &step.TargetType, &step.Repeat, &step.IsRecovery); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
