package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	records    map[string]*WorkoutRecord
	thresholds map[string]*Thresholds

	createErr error

	replaceCalls []ParseOutcome
	updateCalls  []ParseOutcome
	resetCalls   int
	lastSteps    []WorkoutStep
}

func newStubRepo(records ...*WorkoutRecord) *stubRepo {
	r := &stubRepo{
		records:    make(map[string]*WorkoutRecord),
		thresholds: make(map[string]*Thresholds),
	}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *stubRepo) Create(_ context.Context, rec WorkoutRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	copied := rec
	r.records[rec.ID] = &copied
	return nil
}

func (r *stubRepo) Get(_ context.Context, tenantID, workoutID string) (*WorkoutRecord, error) {
	rec, ok := r.records[workoutID]
	if !ok || rec.TenantID != tenantID {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (r *stubRepo) ListByUser(_ context.Context, _, _ string, _ *Cursor, _ int) ([]WorkoutRecord, *Cursor, error) {
	return nil, nil, nil
}

func (r *stubRepo) ReplaceSteps(_ context.Context, _, workoutID string, steps []WorkoutStep, outcome ParseOutcome) error {
	r.replaceCalls = append(r.replaceCalls, outcome)
	r.lastSteps = steps
	if rec, ok := r.records[workoutID]; ok {
		rec.Steps = steps
		rec.ParseStatus = outcome.Status
		rec.ParseConfidence = outcome.Confidence
		rec.ParseDiagnostic = outcome.Diagnostic
	}
	return nil
}

func (r *stubRepo) UpdateParseState(_ context.Context, _, workoutID string, outcome ParseOutcome) error {
	r.updateCalls = append(r.updateCalls, outcome)
	if rec, ok := r.records[workoutID]; ok {
		rec.ParseStatus = outcome.Status
		rec.ParseConfidence = outcome.Confidence
		rec.ParseDiagnostic = outcome.Diagnostic
	}
	return nil
}

func (r *stubRepo) ResetParseState(_ context.Context, _, workoutID string) error {
	r.resetCalls++
	rec, ok := r.records[workoutID]
	if !ok {
		return ErrWorkoutNotFound
	}
	rec.ParseStatus = ParseStatusUnparsed
	rec.ParseConfidence = nil
	rec.ParseDiagnostic = nil
	return nil
}

func (r *stubRepo) GetThresholds(_ context.Context, _, userID string) (*Thresholds, error) {
	return r.thresholds[userID], nil
}

func (r *stubRepo) UpsertThresholds(_ context.Context, _, userID string, th Thresholds) error {
	r.thresholds[userID] = &th
	return nil
}

type stubParser struct {
	result *ParseResult
	err    error
	panics bool
	calls  int
	lastIn ParseInput
}

func (p *stubParser) Parse(_ context.Context, in ParseInput) (*ParseResult, error) {
	p.calls++
	p.lastIn = in
	if p.panics {
		panic("boom")
	}
	return p.result, p.err
}

func unparsedRecord(notes string, distance *int) *WorkoutRecord {
	return &WorkoutRecord{
		ID:                  "w-1",
		TenantID:            "t-1",
		UserID:              "u-1",
		Sport:               "run",
		Notes:               notes,
		TotalDistanceMeters: distance,
		ParseStatus:         ParseStatusUnparsed,
		Version:             "v1",
	}
}

func parsedResult(confidence float64, steps ...WorkoutStep) *ParseResult {
	return &ParseResult{
		Workout:    StructuredWorkout{Sport: "run", Steps: steps},
		Confidence: confidence,
		Raw:        `{"sport":"run"}`,
	}
}

func TestCreateWorkoutRejectsEmptyInput(t *testing.T) {
	service := NewService(newStubRepo(), &stubParser{}, nil)

	_, err := service.CreateWorkout(context.Background(), CreateWorkoutInput{
		TenantID: "t-1", UserID: "u-1",
		Activity: ActivityInput{Sport: "run"},
	})
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = service.CreateWorkout(context.Background(), CreateWorkoutInput{
		TenantID: "t-1", UserID: "u-1",
		Activity: ActivityInput{Notes: "10k easy"},
	})
	require.Error(t, err, "sport is mandatory")
}

func TestCreateWorkoutStartsUnparsed(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo, &stubParser{}, nil)

	rec, err := service.CreateWorkout(context.Background(), CreateWorkoutInput{
		TenantID: "t-1", UserID: "u-1",
		Activity: ActivityInput{Sport: "run", Notes: "10k easy"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, ParseStatusUnparsed, rec.ParseStatus)
	require.Equal(t, "v1", rec.Version)
	require.Contains(t, repo.records, rec.ID)
}

func TestParseWorkoutSuccess(t *testing.T) {
	repo := newStubRepo(unparsedRecord("10k easy with 6x400m strides", intPtr(10000)))
	parser := &stubParser{result: parsedResult(0.9,
		WorkoutStep{Order: 0, Name: "easy", DistanceMeters: intPtr(7600), Intensity: IntensityEasy, TargetType: TargetTypeNone, Repeat: 1},
		WorkoutStep{Order: 1, Name: "strides", DistanceMeters: intPtr(400), Intensity: IntensityVO2, TargetType: TargetTypePace, Repeat: 6},
	)}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusParsed, report.Status)
	require.Len(t, repo.replaceCalls, 1)
	require.Len(t, repo.lastSteps, 2)
	require.NotNil(t, parser.lastIn.Signals.RepeatCount, "signals are extracted from notes")
}

func TestParseWorkoutIdempotentOnParsed(t *testing.T) {
	rec := unparsedRecord("10k easy", nil)
	rec.ParseStatus = ParseStatusParsed
	repo := newStubRepo(rec)
	parser := &stubParser{}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusParsed, report.Status)
	require.Zero(t, parser.calls, "no inference for an already-parsed record")
	require.Empty(t, repo.replaceCalls)
	require.Empty(t, repo.updateCalls)
}

func TestParseWorkoutNoNotesFails(t *testing.T) {
	repo := newStubRepo(unparsedRecord("   ", intPtr(10000)))
	parser := &stubParser{}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusFailed, report.Status)
	require.Zero(t, parser.calls)
	require.Len(t, repo.updateCalls, 1)
	require.Equal(t, ParseStatusFailed, repo.updateCalls[0].Status)
}

func TestParseWorkoutMissingRecordFails(t *testing.T) {
	service := NewService(newStubRepo(), &stubParser{}, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "missing")
	require.Equal(t, ParseStatusFailed, report.Status)
	require.Equal(t, ErrWorkoutNotFound.Error(), report.Diagnostic)
}

func TestParseWorkoutParserErrorFails(t *testing.T) {
	repo := newStubRepo(unparsedRecord("10k easy", nil))
	parser := &stubParser{err: errors.New("capability unreachable")}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusFailed, report.Status)
	require.Len(t, repo.updateCalls, 1)
	require.Equal(t, ParseStatusFailed, repo.updateCalls[0].Status)
}

func TestParseWorkoutToleranceMissIsAmbiguousWithoutSteps(t *testing.T) {
	// The record claims 10km; the candidate sums to 11.5km.
	repo := newStubRepo(unparsedRecord("10k easy", intPtr(10000)))
	parser := &stubParser{result: parsedResult(0.9,
		WorkoutStep{Order: 0, Name: "easy", DistanceMeters: intPtr(11500), Intensity: IntensityEasy, TargetType: TargetTypeNone, Repeat: 1},
	)}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusAmbiguous, report.Status)
	require.Contains(t, report.Diagnostic, "outside")

	require.Empty(t, repo.replaceCalls, "candidate steps are not persisted on a tolerance miss")
	require.Len(t, repo.updateCalls, 1)
	require.Equal(t, ParseStatusAmbiguous, repo.updateCalls[0].Status)
}

func TestParseWorkoutLowConfidenceIsAmbiguousWithSteps(t *testing.T) {
	repo := newStubRepo(unparsedRecord("some vague session", nil))
	parser := &stubParser{result: parsedResult(0.59,
		WorkoutStep{Order: 0, Name: "easy", DurationSeconds: intPtr(1800), Intensity: IntensityEasy, TargetType: TargetTypeNone, Repeat: 1},
	)}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusAmbiguous, report.Status)
	require.Contains(t, report.Diagnostic, "low confidence")
	require.Len(t, repo.replaceCalls, 1, "low confidence still persists steps")
	require.Equal(t, ParseStatusAmbiguous, repo.replaceCalls[0].Status)
}

func TestParseWorkoutConfidenceAtFloorIsParsed(t *testing.T) {
	repo := newStubRepo(unparsedRecord("30min easy", nil))
	parser := &stubParser{result: parsedResult(0.6,
		WorkoutStep{Order: 0, Name: "easy", DurationSeconds: intPtr(1800), Intensity: IntensityEasy, TargetType: TargetTypeNone, Repeat: 1},
	)}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusParsed, report.Status)
}

func TestParseWorkoutUnsoundCandidateFails(t *testing.T) {
	repo := newStubRepo(unparsedRecord("10k easy", nil))
	parser := &stubParser{result: parsedResult(0.9)}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusFailed, report.Status)
	require.Contains(t, report.Diagnostic, "no steps")
}

func TestParseWorkoutRecoversFromPanic(t *testing.T) {
	repo := newStubRepo(unparsedRecord("10k easy", nil))
	parser := &stubParser{panics: true}
	service := NewService(repo, parser, nil)

	report := service.ParseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusFailed, report.Status)
	require.Contains(t, report.Diagnostic, "internal error")
	require.Len(t, repo.updateCalls, 1)
}

func TestReparseWorkoutResetsBeforeParsing(t *testing.T) {
	rec := unparsedRecord("10k easy", nil)
	rec.ParseStatus = ParseStatusParsed
	repo := newStubRepo(rec)
	parser := &stubParser{result: parsedResult(0.9,
		WorkoutStep{Order: 0, Name: "easy", DistanceMeters: intPtr(10000), Intensity: IntensityEasy, TargetType: TargetTypeNone, Repeat: 1},
	)}
	service := NewService(repo, parser, nil)

	report := service.ReparseWorkout(context.Background(), "t-1", "w-1")
	require.Equal(t, ParseStatusParsed, report.Status)
	require.Equal(t, 1, repo.resetCalls)
	require.Equal(t, 1, parser.calls, "reparse runs inference even on a parsed record")
}

func TestWorkoutTargetsUsesStoredThresholds(t *testing.T) {
	rec := unparsedRecord("", nil)
	rec.Steps = []WorkoutStep{
		{Order: 0, Name: "tempo", DurationSeconds: intPtr(1200), Intensity: IntensityTempo, TargetType: TargetTypePace, Repeat: 1},
		{Order: 1, Name: "rest", DurationSeconds: intPtr(120), Intensity: IntensityRest, TargetType: TargetTypeNone, Repeat: 1},
	}
	repo := newStubRepo(rec)
	repo.thresholds["u-1"] = &Thresholds{ThresholdPaceSecPerMeter: floatPtr(0.24)}
	service := NewService(repo, &stubParser{}, nil)

	targets, err := service.WorkoutTargets(context.Background(), "t-1", "w-1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, TargetTypePace, targets[0].Target.Type)
	require.Equal(t, TargetTypeNone, targets[1].Target.Type)
}

func TestWorkoutTargetsWithoutThresholdsYieldsNoneBands(t *testing.T) {
	rec := unparsedRecord("", nil)
	rec.Steps = []WorkoutStep{
		{Order: 0, Name: "tempo", DurationSeconds: intPtr(1200), Intensity: IntensityTempo, TargetType: TargetTypePace, Repeat: 1},
	}
	repo := newStubRepo(rec)
	service := NewService(repo, &stubParser{}, nil)

	targets, err := service.WorkoutTargets(context.Background(), "t-1", "w-1")
	require.NoError(t, err)
	require.Equal(t, TargetTypeNone, targets[0].Target.Type)
}

func TestWorkoutTargetsRequiresSteps(t *testing.T) {
	repo := newStubRepo(unparsedRecord("10k easy", nil))
	service := NewService(repo, &stubParser{}, nil)

	_, err := service.WorkoutTargets(context.Background(), "t-1", "w-1")
	require.ErrorIs(t, err, ErrNoSteps)
}

func TestWorkoutGraphRequiresSteps(t *testing.T) {
	repo := newStubRepo(unparsedRecord("10k easy", nil))
	service := NewService(repo, &stubParser{}, nil)

	_, err := service.WorkoutGraph(context.Background(), "t-1", "w-1", 60)
	require.ErrorIs(t, err, ErrNoSteps)
}

func TestSetThresholdsRejectsNonPositiveValues(t *testing.T) {
	service := NewService(newStubRepo(), &stubParser{}, nil)

	err := service.SetThresholds(context.Background(), "t-1", "u-1", Thresholds{FTPWatts: floatPtr(0)})
	require.Error(t, err)

	err = service.SetThresholds(context.Background(), "t-1", "u-1", Thresholds{ThresholdHRBPM: floatPtr(-1)})
	require.Error(t, err)

	err = service.SetThresholds(context.Background(), "t-1", "u-1", Thresholds{FTPWatts: floatPtr(250)})
	require.NoError(t, err)
}
