package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/workout/internal/observability"
)

var (
	// ErrWorkoutNotFound is returned when a workout cannot be located.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrEmptyInput rejects activity input with no distance, duration, or notes.
	ErrEmptyInput = errors.New("at least one of distance, duration, or notes is required")
	// ErrNoSteps is returned when an operation needs structured steps that
	// do not exist yet.
	ErrNoSteps = errors.New("workout has no structured steps")
)

// parseConfidenceFloor separates parsed from ambiguous on an otherwise
// acceptable candidate.
const parseConfidenceFloor = 0.6

// totalTolerancePercent is the ± band for matching step sums against
// persisted activity totals.
const totalTolerancePercent = 10

// ParseInput is what the notes parser needs for one structuring attempt.
type ParseInput struct {
	Sport                string
	Notes                string
	TotalDistanceMeters  *int
	TotalDurationSeconds *int
	Signals              Signals
}

// ParseResult is a successful (possibly best-effort) structuring outcome.
type ParseResult struct {
	Workout         StructuredWorkout
	Confidence      float64
	Raw             string
	ToleranceMiss   bool
	ToleranceDetail string
}

// NotesParser converts notes into a candidate workout. Implementations own
// their retry policy; any returned error is fatal from the service's view.
type NotesParser interface {
	Parse(ctx context.Context, in ParseInput) (*ParseResult, error)
}

// Cursor models the pagination token for workout listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ParseOutcome carries the terminal parse-state mutation applied to a record.
type ParseOutcome struct {
	Status     ParseStatus
	Confidence *float64
	Diagnostic *string
	Raw        *string
}

// WorkoutRepository captures persistence operations. ReplaceSteps must
// execute as a single committed transaction (delete existing steps, insert
// the new ordered list, update the parse state) so no reader ever observes a
// partially replaced step list.
type WorkoutRepository interface {
	Create(ctx context.Context, rec WorkoutRecord) error
	Get(ctx context.Context, tenantID, workoutID string) (*WorkoutRecord, error)
	ListByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]WorkoutRecord, *Cursor, error)
	ReplaceSteps(ctx context.Context, tenantID, workoutID string, steps []WorkoutStep, outcome ParseOutcome) error
	UpdateParseState(ctx context.Context, tenantID, workoutID string, outcome ParseOutcome) error
	ResetParseState(ctx context.Context, tenantID, workoutID string) error
	GetThresholds(ctx context.Context, tenantID, userID string) (*Thresholds, error)
	UpsertThresholds(ctx context.Context, tenantID, userID string, th Thresholds) error
}

// Service orchestrates workout creation and the parsing state machine.
type Service struct {
	repo   WorkoutRepository
	parser NotesParser
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo WorkoutRepository, parser NotesParser, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, parser: parser, logger: logger}
}

// CreateWorkoutInput captures the payload from the API layer.
type CreateWorkoutInput struct {
	TenantID string
	UserID   string
	Activity ActivityInput
}

// CreateWorkout persists a new workout record in the unparsed state. The
// record exists regardless of whether structuring later succeeds.
func (s *Service) CreateWorkout(ctx context.Context, input CreateWorkoutInput) (*WorkoutRecord, error) {
	if strings.TrimSpace(input.Activity.Sport) == "" {
		return nil, errors.New("sport is required")
	}
	if !input.Activity.Parseable() {
		return nil, ErrEmptyInput
	}

	now := time.Now().UTC()
	rec := WorkoutRecord{
		ID:                   uuid.NewString(),
		TenantID:             input.TenantID,
		UserID:               input.UserID,
		Sport:                input.Activity.Sport,
		TotalDistanceMeters:  input.Activity.TotalDistanceMeters,
		TotalDurationSeconds: input.Activity.TotalDurationSeconds,
		Notes:                input.Activity.Notes,
		ParseStatus:          ParseStatusUnparsed,
		Version:              "v1",
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetWorkout fetches a record with its authored steps.
func (s *Service) GetWorkout(ctx context.Context, tenantID, workoutID string) (*WorkoutRecord, error) {
	rec, err := s.repo.Get(ctx, tenantID, workoutID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrWorkoutNotFound
	}
	return rec, nil
}

// ListWorkouts fetches workouts for a user with cursor pagination.
func (s *Service) ListWorkouts(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]WorkoutRecord, *Cursor, error) {
	return s.repo.ListByUser(ctx, tenantID, userID, cursor, limit)
}

// ParseReport is the terminal outcome of one parse request.
type ParseReport struct {
	Status     ParseStatus
	Diagnostic string
}

// ParseWorkout runs the parsing state machine for one workout. It never
// propagates a failure: every path resolves to a terminal status, so a
// structuring failure cannot block the existence of the owning record.
// Serialization of concurrent calls for the same workout is left to the
// caller.
func (s *Service) ParseWorkout(ctx context.Context, tenantID, workoutID string) (report ParseReport) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during workout parse", "workout_id", workoutID, "panic", r)
			report = s.markFailed(ctx, tenantID, workoutID, fmt.Sprintf("internal error: %v", r), nil)
		}
		observability.RecordParseOutcome(string(report.Status), time.Since(start))
	}()

	rec, err := s.repo.Get(ctx, tenantID, workoutID)
	if err != nil {
		s.logger.Error("failed to load workout for parsing", "workout_id", workoutID, "error", err)
		return ParseReport{Status: ParseStatusFailed, Diagnostic: err.Error()}
	}
	if rec == nil {
		return ParseReport{Status: ParseStatusFailed, Diagnostic: ErrWorkoutNotFound.Error()}
	}

	// Idempotent: a request against an already-parsed record is a no-op.
	if rec.ParseStatus == ParseStatusParsed {
		return ParseReport{Status: ParseStatusParsed, Diagnostic: "already parsed"}
	}

	if strings.TrimSpace(rec.Notes) == "" {
		return s.markFailed(ctx, tenantID, workoutID, "no notes", nil)
	}

	in := ParseInput{
		Sport:                rec.Sport,
		Notes:                rec.Notes,
		TotalDistanceMeters:  rec.TotalDistanceMeters,
		TotalDurationSeconds: rec.TotalDurationSeconds,
		Signals:              ExtractSignals(rec.Notes),
	}

	result, err := s.parser.Parse(ctx, in)
	if err != nil {
		s.logger.Warn("workout parse failed", "workout_id", workoutID, "error", err)
		return s.markFailed(ctx, tenantID, workoutID, err.Error(), nil)
	}

	// Structural soundness re-check, independent of what the parser claims.
	if err := recheckStructure(result.Workout); err != nil {
		return s.markFailed(ctx, tenantID, workoutID, err.Error(), &result.Raw)
	}

	// Tolerance re-check against the authoritative persisted hints. A miss
	// here is terminal ambiguity: the candidate steps are not persisted and
	// any prior steps remain untouched.
	if detail := recheckTolerance(result.Workout, rec); detail != "" {
		outcome := ParseOutcome{
			Status:     ParseStatusAmbiguous,
			Confidence: &result.Confidence,
			Diagnostic: &detail,
			Raw:        &result.Raw,
		}
		if err := s.repo.UpdateParseState(ctx, tenantID, workoutID, outcome); err != nil {
			s.logger.Error("failed to record ambiguous parse state", "workout_id", workoutID, "error", err)
			return ParseReport{Status: ParseStatusFailed, Diagnostic: err.Error()}
		}
		return ParseReport{Status: ParseStatusAmbiguous, Diagnostic: detail}
	}

	status := ParseStatusParsed
	diagnostic := ""
	if result.Confidence < parseConfidenceFloor {
		status = ParseStatusAmbiguous
		diagnostic = fmt.Sprintf("low confidence %.2f", result.Confidence)
	}

	outcome := ParseOutcome{
		Status:     status,
		Confidence: &result.Confidence,
		Raw:        &result.Raw,
	}
	if diagnostic != "" {
		outcome.Diagnostic = &diagnostic
	}

	// Unlike the tolerance branch, here the steps are persisted; only the
	// terminal label differs on low confidence.
	if err := s.repo.ReplaceSteps(ctx, tenantID, workoutID, result.Workout.Steps, outcome); err != nil {
		s.logger.Error("failed to persist structured steps", "workout_id", workoutID, "error", err)
		return s.markFailed(ctx, tenantID, workoutID, err.Error(), &result.Raw)
	}

	s.logger.Info("workout structured",
		"workout_id", workoutID, "status", status,
		"steps", len(result.Workout.Steps), "confidence", result.Confidence)
	return ParseReport{Status: status, Diagnostic: diagnostic}
}

// ReparseWorkout resets a terminal record back to unparsed and runs the
// state machine again.
func (s *Service) ReparseWorkout(ctx context.Context, tenantID, workoutID string) ParseReport {
	if err := s.repo.ResetParseState(ctx, tenantID, workoutID); err != nil {
		s.logger.Error("failed to reset parse state", "workout_id", workoutID, "error", err)
		return ParseReport{Status: ParseStatusFailed, Diagnostic: err.Error()}
	}
	return s.ParseWorkout(ctx, tenantID, workoutID)
}

func (s *Service) markFailed(ctx context.Context, tenantID, workoutID, diagnostic string, raw *string) ParseReport {
	outcome := ParseOutcome{
		Status:     ParseStatusFailed,
		Diagnostic: &diagnostic,
		Raw:        raw,
	}
	if err := s.repo.UpdateParseState(ctx, tenantID, workoutID, outcome); err != nil {
		s.logger.Error("failed to record failed parse state", "workout_id", workoutID, "error", err)
	}
	return ParseReport{Status: ParseStatusFailed, Diagnostic: diagnostic}
}

// recheckStructure asserts the minimal soundness of a parser result before
// persisting: non-empty steps, each with exactly one positive magnitude.
func recheckStructure(w StructuredWorkout) error {
	if len(w.Steps) == 0 {
		return errors.New("parser returned no steps")
	}
	for i, step := range w.Steps {
		hasDuration := step.DurationSeconds != nil && *step.DurationSeconds > 0
		hasDistance := step.DistanceMeters != nil && *step.DistanceMeters > 0
		if hasDuration == hasDistance {
			return fmt.Errorf("steps[%d]: exactly one of duration and distance must be positive", i)
		}
	}
	return nil
}

// recheckTolerance applies the ±10% total check against persisted totals.
// Returns a non-empty diagnostic on a miss.
func recheckTolerance(w StructuredWorkout, rec *WorkoutRecord) string {
	if rec.TotalDistanceMeters != nil {
		sum := 0
		for _, step := range w.Steps {
			if step.DistanceMeters != nil {
				sum += *step.DistanceMeters * step.Repeat
			}
		}
		if sum > 0 && !withinTotalTolerance(sum, *rec.TotalDistanceMeters) {
			return fmt.Sprintf("summed step distance %dm is outside ±%d%% of the recorded %dm total", sum, totalTolerancePercent, *rec.TotalDistanceMeters)
		}
	}
	if rec.TotalDurationSeconds != nil {
		sum := 0
		for _, step := range w.Steps {
			if step.DurationSeconds != nil {
				sum += *step.DurationSeconds * step.Repeat
			}
		}
		if sum > 0 && !withinTotalTolerance(sum, *rec.TotalDurationSeconds) {
			return fmt.Sprintf("summed step duration %ds is outside ±%d%% of the recorded %ds total", sum, totalTolerancePercent, *rec.TotalDurationSeconds)
		}
	}
	return ""
}

func withinTotalTolerance(sum, total int) bool {
	diff := sum - total
	if diff < 0 {
		diff = -diff
	}
	return diff*100 <= total*totalTolerancePercent
}

// StepTarget pairs an authored step with its resolved execution target.
type StepTarget struct {
	Step   WorkoutStep
	Target TargetBand
}

// WorkoutGraph builds the visualization series for a workout's persisted steps.
func (s *Service) WorkoutGraph(ctx context.Context, tenantID, workoutID string, resolutionSeconds int) ([]GraphPoint, error) {
	rec, err := s.GetWorkout(ctx, tenantID, workoutID)
	if err != nil {
		return nil, err
	}
	if len(rec.Steps) == 0 {
		return nil, ErrNoSteps
	}
	return BuildSeries(rec.Structured(), resolutionSeconds)
}

// WorkoutTargets resolves execution targets for every authored step using
// the owner's stored thresholds. Absent thresholds yield none-typed bands,
// never fabricated values.
func (s *Service) WorkoutTargets(ctx context.Context, tenantID, workoutID string) ([]StepTarget, error) {
	rec, err := s.GetWorkout(ctx, tenantID, workoutID)
	if err != nil {
		return nil, err
	}
	if len(rec.Steps) == 0 {
		return nil, ErrNoSteps
	}

	thresholds := Thresholds{}
	if stored, err := s.repo.GetThresholds(ctx, tenantID, rec.UserID); err != nil {
		return nil, err
	} else if stored != nil {
		thresholds = *stored
	}

	targets := make([]StepTarget, 0, len(rec.Steps))
	for _, step := range rec.Steps {
		targets = append(targets, StepTarget{
			Step:   step,
			Target: TargetFor(step.Intensity, rec.Sport, thresholds),
		})
	}
	return targets, nil
}

// Thresholds returns the stored per-user thresholds, or nil when none exist.
func (s *Service) Thresholds(ctx context.Context, tenantID, userID string) (*Thresholds, error) {
	return s.repo.GetThresholds(ctx, tenantID, userID)
}

// SetThresholds stores the per-user thresholds as supplied. Absent fields
// stay absent.
func (s *Service) SetThresholds(ctx context.Context, tenantID, userID string, th Thresholds) error {
	if th.ThresholdPaceSecPerMeter != nil && *th.ThresholdPaceSecPerMeter <= 0 {
		return errors.New("threshold pace must be positive")
	}
	if th.FTPWatts != nil && *th.FTPWatts <= 0 {
		return errors.New("ftp must be positive")
	}
	if th.ThresholdHRBPM != nil && *th.ThresholdHRBPM <= 0 {
		return errors.New("threshold heart rate must be positive")
	}
	return s.repo.UpsertThresholds(ctx, tenantID, userID, th)
}
