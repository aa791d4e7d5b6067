// Package parsing turns free-form training notes into canonical workouts by
// driving the inference capability under a two-tier retry policy.
package parsing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"example.com/workout/internal/domain"
	"example.com/workout/internal/inference"
	"example.com/workout/internal/observability"
)

const (
	// Transient failures self-heal cheaply, so they get a deep budget.
	maxTransientRetries = 5
	// Persistently malformed output after one corrective nudge means the
	// input/instruction combination is unworkable; further retries burn
	// cost without improving odds.
	maxCandidateAttempts = 2

	backoffBase = time.Second
	backoffCap  = 60 * time.Second
)

// ParseFailedError is the terminal failure of a parse call: the candidate
// stayed non-conformant after the soft-retry budget, or the capability was
// fatally unreachable.
type ParseFailedError struct {
	Reason string
	Raw    string
}

func (e *ParseFailedError) Error() string {
	return "parse failed: " + e.Reason
}

// Option configures optional Parser behaviour.
type Option func(*Parser)

// WithSleep overrides the backoff sleep, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *Parser) {
		p.sleep = sleep
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// Parser is the stateless retry orchestrator: a pure function of its input
// plus the capability reference. Each attempt performs exactly one inference
// call and no other I/O.
type Parser struct {
	client inference.Client
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewParser constructs a Parser around the inference capability.
func NewParser(client inference.Client, opts ...Option) *Parser {
	p := &Parser{
		client: client,
		sleep:  time.Sleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts notes into a structured workout.
//
// Failure tiers: transient infrastructure errors retry up to five times with
// exponential backoff (base 1s, doubling, capped at 60s); malformed or
// non-conformant candidates retry once with an instruction echoing the
// specific error; everything else is fatal immediately. A tolerance miss
// against the caller's hints is a soft failure too, but once the soft budget
// is spent the best-effort result is returned rather than discarded.
//
// The backoff sleep suspends only the invoking goroutine and does not
// observe cancellation mid-wait; a sleeping attempt runs to completion.
func (p *Parser) Parse(ctx context.Context, in domain.ParseInput) (*domain.ParseResult, error) {
	instruction := BuildInstruction(in)
	transientRetries := 0
	candidateAttempts := 0
	var bestEffort *domain.ParseResult

	for {
		resp, err := p.client.Generate(ctx, inference.Request{System: systemContract, Instruction: instruction})
		if err != nil {
			if inference.IsTransient(err) {
				transientRetries++
				observability.RecordInferenceRetry("transient")
				if transientRetries >= maxTransientRetries {
					return nil, fmt.Errorf("transient retry budget exhausted after %d attempts: %w", transientRetries, err)
				}
				delay := backoffDelay(transientRetries)
				p.logger.Warn("transient inference failure, backing off",
					"attempt", transientRetries, "delay", delay, "error", err)
				p.sleep(delay)
				continue
			}
			if errors.Is(err, inference.ErrEmptyCandidate) {
				candidateAttempts++
				observability.RecordInferenceRetry("soft")
				if candidateAttempts >= maxCandidateAttempts {
					if bestEffort != nil {
						return bestEffort, nil
					}
					return nil, &ParseFailedError{Reason: err.Error()}
				}
				instruction = NextInstruction(instruction, err)
				continue
			}
			return nil, err
		}

		candidateAttempts++
		workout, confidence, decodeErr := decodeCandidate(resp.Text)
		if decodeErr == nil {
			if violations := domain.Validate(*workout, nil); len(violations) > 0 {
				decodeErr = &SchemaError{Detail: domain.FormatViolations(violations)}
			}
		}
		if decodeErr != nil {
			observability.RecordInferenceRetry("soft")
			if candidateAttempts >= maxCandidateAttempts {
				if bestEffort != nil {
					return bestEffort, nil
				}
				return nil, &ParseFailedError{Reason: decodeErr.Error(), Raw: resp.Text}
			}
			p.logger.Info("candidate rejected, issuing corrective retry", "error", decodeErr)
			instruction = NextInstruction(instruction, decodeErr)
			continue
		}

		result := &domain.ParseResult{
			Workout:    *workout,
			Confidence: confidence,
			Raw:        resp.Text,
		}

		if tolErr := checkTolerance(*workout, in); tolErr != nil {
			result.ToleranceMiss = true
			result.ToleranceDetail = tolErr.Error()
			if candidateAttempts < maxCandidateAttempts {
				bestEffort = result
				observability.RecordInferenceRetry("soft")
				p.logger.Info("candidate outside total tolerance, issuing corrective retry", "error", tolErr)
				instruction = NextInstruction(instruction, tolErr)
				continue
			}
			// A tolerance miss alone never discards the result.
			return result, nil
		}

		return result, nil
	}
}

// checkTolerance verifies the flat (unexpanded) step sums against the
// caller's hints within ±10%.
func checkTolerance(w domain.StructuredWorkout, in domain.ParseInput) error {
	if in.TotalDistanceMeters != nil {
		sum := 0
		for _, step := range w.Steps {
			if step.DistanceMeters != nil {
				sum += *step.DistanceMeters * step.Repeat
			}
		}
		if sum > 0 && !withinTolerance(sum, *in.TotalDistanceMeters) {
			return fmt.Errorf("summed step distance %dm is outside ±10%% of the %dm activity total", sum, *in.TotalDistanceMeters)
		}
	}
	if in.TotalDurationSeconds != nil {
		sum := 0
		for _, step := range w.Steps {
			if step.DurationSeconds != nil {
				sum += *step.DurationSeconds * step.Repeat
			}
		}
		if sum > 0 && !withinTolerance(sum, *in.TotalDurationSeconds) {
			return fmt.Errorf("summed step duration %ds is outside ±10%% of the %ds activity total", sum, *in.TotalDurationSeconds)
		}
	}
	return nil
}

func withinTolerance(sum, hint int) bool {
	diff := sum - hint
	if diff < 0 {
		diff = -diff
	}
	return diff*10 <= hint
}

// backoffDelay doubles from the base per retry, capped at one minute.
func backoffDelay(retry int) time.Duration {
	delay := backoffBase << uint(retry-1)
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}
