// Package api exposes HTTP handlers for the workout service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/workout/internal/auth"
	"example.com/workout/internal/domain"
	"example.com/workout/internal/observability"
	"example.com/workout/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/", h.workoutSubresource)
	mux.HandleFunc("/v1/thresholds", h.thresholds)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// workoutSubresource dispatches /v1/workouts/{id} and its action paths.
func (h *Handler) workoutSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/workouts/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing workout id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.getWorkout(w, r, id)
	case "parse":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.parseWorkout(w, r, id, false)
	case "reparse":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.parseWorkout(w, r, id, true)
	case "graph":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.workoutGraph(w, r, id)
	case "targets":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.workoutTargets(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req CreateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = claims.Subject
	}

	rec, err := h.service.CreateWorkout(r.Context(), domain.CreateWorkoutInput{
		TenantID: claims.TenantID,
		UserID:   userID,
		Activity: domain.ActivityInput{
			Sport:                req.Sport,
			TotalDistanceMeters:  req.TotalDistanceMeters,
			TotalDurationSeconds: req.TotalDurationSeconds,
			Notes:                req.Notes,
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptyInput) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	observability.RecordWorkoutCreated()
	writeJSON(w, http.StatusCreated, toWorkoutView(*rec))
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	rec, err := h.service.GetWorkout(r.Context(), claims.TenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrWorkoutNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "workout not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toWorkoutView(*rec))
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = claims.Subject
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListWorkouts(r.Context(), claims.TenantID, userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]WorkoutView, 0, len(records))
	for _, rec := range records {
		items = append(items, toWorkoutView(rec))
	}

	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) parseWorkout(w http.ResponseWriter, r *http.Request, id string, reset bool) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var report domain.ParseReport
	if reset {
		report = h.service.ReparseWorkout(r.Context(), claims.TenantID, id)
	} else {
		report = h.service.ParseWorkout(r.Context(), claims.TenantID, id)
	}

	if report.Status == domain.ParseStatusFailed && report.Diagnostic == domain.ErrWorkoutNotFound.Error() {
		writeError(w, http.StatusNotFound, "not_found", "workout not found")
		return
	}

	writeJSON(w, http.StatusOK, ParseReportResponse{
		WorkoutID:  id,
		Status:     string(report.Status),
		Diagnostic: report.Diagnostic,
	})
}

func (h *Handler) workoutGraph(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	resolution := 60
	if raw := r.URL.Query().Get("resolution_seconds"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "resolution_seconds must be a positive integer")
			return
		}
		resolution = parsed
	}

	points, err := h.service.WorkoutGraph(r.Context(), claims.TenantID, id, resolution)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrWorkoutNotFound):
			writeError(w, http.StatusNotFound, "not_found", "workout not found")
		case errors.Is(err, domain.ErrNoSteps):
			writeError(w, http.StatusConflict, "no_steps", "workout has no structured steps")
		case errors.Is(err, domain.ErrDurationRequired):
			writeError(w, http.StatusUnprocessableEntity, "duration_required", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	views := make([]GraphPointView, 0, len(points))
	for _, p := range points {
		views = append(views, GraphPointView{
			TimeSeconds: p.TimeSeconds,
			Intensity:   string(p.Intensity),
			StepOrder:   p.StepOrder,
			StepName:    p.StepName,
			IsRecovery:  p.IsRecovery,
		})
	}

	writeJSON(w, http.StatusOK, GraphResponse{
		WorkoutID:         id,
		ResolutionSeconds: resolution,
		Points:            views,
	})
}

func (h *Handler) workoutTargets(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	targets, err := h.service.WorkoutTargets(r.Context(), claims.TenantID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrWorkoutNotFound):
			writeError(w, http.StatusNotFound, "not_found", "workout not found")
		case errors.Is(err, domain.ErrNoSteps):
			writeError(w, http.StatusConflict, "no_steps", "workout has no structured steps")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	views := make([]StepTargetView, 0, len(targets))
	for _, t := range targets {
		views = append(views, StepTargetView{
			Step: toStepView(t.Step),
			Target: TargetBandView{
				Type:  string(t.Target.Type),
				Min:   t.Target.Min,
				Max:   t.Target.Max,
				Value: t.Target.Value,
			},
		})
	}

	writeJSON(w, http.StatusOK, TargetsResponse{WorkoutID: id, Targets: views})
}

func (h *Handler) thresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getThresholds(w, r)
	case http.MethodPut:
		h.putThresholds(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getThresholds(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = claims.Subject
	}

	stored, err := h.service.Thresholds(r.Context(), claims.TenantID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if stored == nil {
		writeError(w, http.StatusNotFound, "not_found", "no thresholds stored for user")
		return
	}

	writeJSON(w, http.StatusOK, toThresholdsView(userID, *stored))
}

func (h *Handler) putThresholds(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req ThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = claims.Subject
	}

	th := domain.Thresholds{
		ThresholdPaceSecPerMeter: req.ThresholdPaceSecPerMeter,
		FTPWatts:                 req.FTPWatts,
		ThresholdHRBPM:           req.ThresholdHRBPM,
	}
	if err := h.service.SetThresholds(r.Context(), claims.TenantID, userID, th); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toThresholdsView(userID, th))
}

// requireScope extracts claims and enforces that at least one of the listed
// scopes is present. Writes the error response itself on failure.
func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

// CreateWorkoutRequest is the payload for POST /v1/workouts.
type CreateWorkoutRequest struct {
	UserID               string `json:"user_id"`
	Sport                string `json:"sport"`
	TotalDistanceMeters  *int   `json:"total_distance_meters,omitempty"`
	TotalDurationSeconds *int   `json:"total_duration_seconds,omitempty"`
	Notes                string `json:"notes"`
}

// Validate ensures request correctness.
func (r CreateWorkoutRequest) Validate() error {
	if strings.TrimSpace(r.Sport) == "" {
		return errors.New("sport is required")
	}
	if r.TotalDistanceMeters != nil && *r.TotalDistanceMeters <= 0 {
		return errors.New("total_distance_meters must be > 0")
	}
	if r.TotalDurationSeconds != nil && *r.TotalDurationSeconds <= 0 {
		return errors.New("total_duration_seconds must be > 0")
	}
	if r.TotalDistanceMeters == nil && r.TotalDurationSeconds == nil && strings.TrimSpace(r.Notes) == "" {
		return errors.New("at least one of total_distance_meters, total_duration_seconds, or notes is required")
	}
	return nil
}

// StepView exposes one authored step.
type StepView struct {
	Order           int    `json:"order"`
	Name            string `json:"name"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	DistanceMeters  *int   `json:"distance_meters,omitempty"`
	Intensity       string `json:"intensity"`
	TargetType      string `json:"target_type"`
	Repeat          int    `json:"repeat"`
	IsRecovery      bool   `json:"is_recovery"`
}

// WorkoutView exposes full details about a workout record.
type WorkoutView struct {
	WorkoutID            string     `json:"workout_id"`
	TenantID             string     `json:"tenant_id"`
	UserID               string     `json:"user_id"`
	Sport                string     `json:"sport"`
	TotalDistanceMeters  *int       `json:"total_distance_meters,omitempty"`
	TotalDurationSeconds *int       `json:"total_duration_seconds,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	Steps                []StepView `json:"steps"`
	ParseStatus          string     `json:"parse_status"`
	ParseConfidence      *float64   `json:"parse_confidence,omitempty"`
	ParseDiagnostic      *string    `json:"parse_diagnostic,omitempty"`
	Version              string     `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ParseReportResponse describes the outcome of a parse request.
type ParseReportResponse struct {
	WorkoutID  string `json:"workout_id"`
	Status     string `json:"status"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// GraphPointView is one sample of the visualization series.
type GraphPointView struct {
	TimeSeconds int    `json:"time_seconds"`
	Intensity   string `json:"intensity"`
	StepOrder   int    `json:"step_order"`
	StepName    string `json:"step_name"`
	IsRecovery  bool   `json:"is_recovery"`
}

// GraphResponse packages the graph series.
type GraphResponse struct {
	WorkoutID         string           `json:"workout_id"`
	ResolutionSeconds int              `json:"resolution_seconds"`
	Points            []GraphPointView `json:"points"`
}

// TargetBandView exposes one resolved execution target.
type TargetBandView struct {
	Type  string   `json:"type"`
	Min   float64  `json:"min"`
	Max   float64  `json:"max"`
	Value *float64 `json:"value,omitempty"`
}

// StepTargetView pairs a step with its target band.
type StepTargetView struct {
	Step   StepView       `json:"step"`
	Target TargetBandView `json:"target"`
}

// TargetsResponse packages per-step targets.
type TargetsResponse struct {
	WorkoutID string           `json:"workout_id"`
	Targets   []StepTargetView `json:"targets"`
}

// ThresholdsRequest is the payload for PUT /v1/thresholds.
type ThresholdsRequest struct {
	UserID                   string   `json:"user_id"`
	ThresholdPaceSecPerMeter *float64 `json:"threshold_pace_sec_per_meter,omitempty"`
	FTPWatts                 *float64 `json:"ftp_watts,omitempty"`
	ThresholdHRBPM           *float64 `json:"threshold_hr_bpm,omitempty"`
}

// ThresholdsView exposes stored thresholds.
type ThresholdsView struct {
	UserID                   string   `json:"user_id"`
	ThresholdPaceSecPerMeter *float64 `json:"threshold_pace_sec_per_meter,omitempty"`
	FTPWatts                 *float64 `json:"ftp_watts,omitempty"`
	ThresholdHRBPM           *float64 `json:"threshold_hr_bpm,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toStepView(step domain.WorkoutStep) StepView {
	return StepView{
		Order:           step.Order,
		Name:            step.Name,
		DurationSeconds: step.DurationSeconds,
		DistanceMeters:  step.DistanceMeters,
		Intensity:       string(step.Intensity),
		TargetType:      string(step.TargetType),
		Repeat:          step.Repeat,
		IsRecovery:      step.IsRecovery,
	}
}

func toThresholdsView(userID string, th domain.Thresholds) ThresholdsView {
	return ThresholdsView{
		UserID:                   userID,
		ThresholdPaceSecPerMeter: th.ThresholdPaceSecPerMeter,
		FTPWatts:                 th.FTPWatts,
		ThresholdHRBPM:           th.ThresholdHRBPM,
	}
}

func toWorkoutView(rec domain.WorkoutRecord) WorkoutView {
	steps := make([]StepView, 0, len(rec.Steps))
	for _, step := range rec.Steps {
		steps = append(steps, toStepView(step))
	}
	return WorkoutView{
		WorkoutID:            rec.ID,
		TenantID:             rec.TenantID,
		UserID:               rec.UserID,
		Sport:                rec.Sport,
		TotalDistanceMeters:  rec.TotalDistanceMeters,
		TotalDurationSeconds: rec.TotalDurationSeconds,
		Notes:                rec.Notes,
		Steps:                steps,
		ParseStatus:          string(rec.ParseStatus),
		ParseConfidence:      rec.ParseConfidence,
		ParseDiagnostic:      rec.ParseDiagnostic,
		Version:              rec.Version,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
}
