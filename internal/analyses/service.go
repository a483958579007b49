package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"screenplay-backend/internal/costs"
	"screenplay-backend/internal/extract"
	"screenplay-backend/internal/progress"
	"screenplay-backend/internal/providers"
	"screenplay-backend/internal/shared/metrics"
	"screenplay-backend/internal/shared/storage/object"
	"screenplay-backend/internal/shared/telemetry"
)

// defaultPipelineTimeout caps one full analysis run end to end.
const defaultPipelineTimeout = 10 * time.Minute

// minScriptChars matches the extraction minimum for direct text submissions.
const minScriptChars = 100

// SourceDetector is the source-material pre-pass contract.
type SourceDetector interface {
	Name() string
	Detect(ctx context.Context, title, scriptText string) (*providers.SourceDetection, providers.Usage, error)
}

// Service orchestrates the analysis pipeline: extraction, the detector
// pre-pass, the provider fan-out, the merge and persistence.
type Service struct {
	Repo      Repo
	Store     object.ObjectStore
	Progress  progress.Store
	Costs     *costs.Service
	Detector  SourceDetector
	Providers []providers.Adapter
	// Models maps provider name to the configured model, for ledger rows.
	Models          map[string]string
	PipelineTimeout time.Duration
}

// Submission carries the submitter-declared context for one analysis.
type Submission struct {
	Title string
	Genre string
	// BudgetUSD is the declared production budget, when the submitter has one.
	BudgetUSD *float64
}

// CreateFromUpload admits an uploaded script file and starts the pipeline.
func (s *Service) CreateFromUpload(ctx context.Context, userID string, sub Submission, fileName string, r io.Reader) (Analysis, error) {
	if userID == "" {
		return Analysis{}, errors.New("userID is required")
	}

	if err := s.admit(ctx, userID, 0); err != nil {
		return Analysis{}, err
	}

	fileKey, sizeBytes, mimeType, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Analysis{}, fmt.Errorf("save upload: %w", err)
	}

	analysis := Analysis{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(sub.Title),
		FileKey:   fileKey,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	telemetry.Info("analysis.admitted", map[string]any{
		"analysis_id": analysis.ID,
		"user_id":     userID,
		"source":      "upload",
		"size_bytes":  sizeBytes,
		"mime":        mimeType,
		"request_id":  requestIDFromContext(ctx),
	})
	s.setProgress(ctx, analysis.ID, StatusPending, progress.StageStarting, 5, "")

	go s.run(backgroundWithRequestID(ctx), analysis, runInput{sub: sub, fileKey: fileKey, mimeType: mimeType, fileName: fileName})
	return analysis, nil
}

// CreateFromText admits script text pasted directly, skipping extraction.
func (s *Service) CreateFromText(ctx context.Context, userID string, sub Submission, text string) (Analysis, error) {
	if userID == "" {
		return Analysis{}, errors.New("userID is required")
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minScriptChars {
		return Analysis{}, ErrTextTooShort
	}

	if err := s.admit(ctx, userID, len(text)); err != nil {
		return Analysis{}, err
	}

	// The raw text is stored like any upload so reruns and audits can
	// reach the exact input.
	fileKey, _, _, err := s.Store.Save(ctx, userID, "script.txt", strings.NewReader(text))
	if err != nil {
		return Analysis{}, fmt.Errorf("save text: %w", err)
	}

	analysis := Analysis{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(sub.Title),
		FileKey:   fileKey,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	telemetry.Info("analysis.admitted", map[string]any{
		"analysis_id": analysis.ID,
		"user_id":     userID,
		"source":      "text",
		"chars":       len(text),
		"request_id":  requestIDFromContext(ctx),
	})
	s.setProgress(ctx, analysis.ID, StatusPending, progress.StageStarting, 5, "")

	go s.run(backgroundWithRequestID(ctx), analysis, runInput{sub: sub, text: text})
	return analysis, nil
}

// admit enforces the advisory monthly spend ceiling for one user.
func (s *Service) admit(ctx context.Context, userID string, scriptChars int) error {
	if s.Costs == nil {
		return nil
	}
	if scriptChars == 0 {
		// Uploads are estimated before extraction; assume a feature-length
		// script rather than reading the file twice.
		scriptChars = 250_000
	}
	estimate := costs.EstimateAnalysisCost(scriptChars)
	ok, spent, err := s.Costs.CanSpend(ctx, userID, estimate)
	if err != nil {
		// The ceiling is advisory; a broken ledger must not block intake.
		telemetry.Error("analysis.ceiling_check_failed", map[string]any{"err": err.Error()})
		return nil
	}
	if !ok {
		telemetry.Info("analysis.ceiling_reached", map[string]any{
			"user_id":      userID,
			"spent_usd":    spent,
			"estimate_usd": estimate,
		})
		return ErrSpendCeiling
	}
	return nil
}

// GetForUser returns an analysis only if the user owns it.
func (s *Service) GetForUser(ctx context.Context, analysisID, userID string) (Analysis, error) {
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// ListForUser returns the user's analyses, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

type runInput struct {
	sub      Submission
	fileKey  string
	mimeType string
	fileName string
	text     string
}

// run executes the pipeline for one analysis. It always drives the job to
// a terminal status.
func (s *Service) run(ctx context.Context, analysis Analysis, in runInput) {
	timeout := s.PipelineTimeout
	if timeout <= 0 {
		timeout = defaultPipelineTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startedAt := time.Now()
	metrics.IncAnalysisStarted()

	// Extraction.
	s.transition(ctx, analysis.ID, StatusExtracting, progress.StageExtracting, 10, "")
	text := in.text
	if text == "" {
		extracted, err := extract.ExtractText(ctx, s.Store, in.fileKey, in.mimeType, in.fileName)
		if err != nil {
			metrics.IncExtractionFailed()
			s.failAnalysis(ctx, analysis.ID, err, startedAt)
			return
		}
		text = extracted
	}
	s.setProgress(ctx, analysis.ID, StatusExtracting, progress.StageExtracting, 20, "")

	// Source-material pre-pass. A detector failure downgrades the analysis
	// rather than failing it: the providers just run without adaptation
	// context.
	var detection *providers.SourceDetection
	if s.Detector != nil {
		s.setProgress(ctx, analysis.ID, StatusExtracting, progress.StageDetecting, 22, "")
		detectStart := time.Now()
		det, usage, err := s.Detector.Detect(ctx, analysis.Title, text)
		s.recordCost(ctx, analysis, s.Detector.Name(), usage, time.Since(detectStart), err)
		if err != nil {
			telemetry.Info("analysis.detector_skipped", map[string]any{
				"analysis_id": analysis.ID,
				"reason":      providers.FailureKind(err),
			})
		} else {
			detection = det
		}
		s.setProgress(ctx, analysis.ID, StatusExtracting, progress.StageDetecting, 25, "")
	}

	// The budget briefing either reflects a declared figure or estimates one
	// from the script itself; both feed the provider prompts and the report.
	budget := resolveBudget(in.sub.BudgetUSD, text, in.sub.Genre)

	// Provider fan-out. Every provider runs to completion or failure; a
	// failing provider never cancels its siblings.
	s.transition(ctx, analysis.ID, StatusAnalyzing, progress.StageAnalyzing, 30, "")
	results := s.fanOut(ctx, analysis, providers.Input{
		ScriptText:    text,
		Title:         analysis.Title,
		Genre:         in.sub.Genre,
		BudgetContext: budgetContext(budget),
		Detection:     detection,
	})

	// Merge and persist.
	s.transition(ctx, analysis.ID, StatusMerging, progress.StageMerging, 90, "")
	report := Merge(results, detection, in.sub.Genre, &budget)

	s.setProgress(ctx, analysis.ID, StatusMerging, progress.StageSaving, 92, "")
	completedAt := time.Now().UTC()
	if err := s.Repo.Finalize(context.Background(), analysis.ID, StatusCompleted, report, results, nil, nil, completedAt); err != nil {
		s.failAnalysis(ctx, analysis.ID, fmt.Errorf("persist result: %w", err), startedAt)
		return
	}
	s.setProgress(ctx, analysis.ID, StatusCompleted, progress.StageComplete, 100, "")

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(time.Since(startedAt).Milliseconds()))
	telemetry.Info("analysis.status", map[string]any{
		"analysis_id":       analysis.ID,
		"status_transition": "merging->completed",
		"providers_failed":  len(report.ProvidersFailed),
		"duration_ms":       time.Since(startedAt).Milliseconds(),
		"request_id":        requestIDFromContext(ctx),
	})
}

// fanOut runs all providers concurrently, collecting an outcome per
// provider regardless of individual failures.
func (s *Service) fanOut(ctx context.Context, analysis Analysis, input providers.Input) []ProviderResult {
	var (
		mu        sync.Mutex
		results   = make([]ProviderResult, 0, len(s.Providers))
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.Providers {
		adapter := providers.Retrying{
			Base:       p,
			RequestID:  requestIDFromContext(ctx),
			AnalysisID: analysis.ID,
		}
		g.Go(func() error {
			callStart := time.Now()
			raw, usage, err := adapter.Analyze(gctx, input)
			duration := time.Since(callStart)

			s.recordCost(ctx, analysis, adapter.Name(), usage, duration, err)

			result := ProviderResult{
				Provider:   adapter.Name(),
				Status:     ProviderOK,
				Payload:    raw,
				DurationMs: duration.Milliseconds(),
			}
			if err != nil {
				result.Status = ProviderFailed
				result.FailureKind = providers.FailureKind(err)
				telemetry.Error("provider.failed", map[string]any{
					"analysis_id": analysis.ID,
					"provider":    adapter.Name(),
					"kind":        result.FailureKind,
					"duration_ms": duration.Milliseconds(),
				})
			}

			mu.Lock()
			results = append(results, result)
			completed++
			percent := 30 + completed*11
			mu.Unlock()

			s.setProgress(ctx, analysis.ID, StatusAnalyzing, progress.StageAnalyzing, percent,
				fmt.Sprintf("%s finished", adapter.Name()))
			return nil
		})
	}
	// Workers never return errors; continue-on-failure is the contract.
	_ = g.Wait()
	return results
}

// recordCost appends one ledger entry for a provider call, succeeded or not.
func (s *Service) recordCost(ctx context.Context, analysis Analysis, provider string, usage providers.Usage, latency time.Duration, callErr error) {
	outcome := "ok"
	if callErr != nil {
		outcome = providers.FailureKind(callErr)
	}
	metrics.IncProviderCall(provider, outcome)
	if s.Costs == nil {
		return
	}
	s.Costs.Record(context.WithoutCancel(ctx), costs.Entry{
		AnalysisID:       analysis.ID,
		UserID:           analysis.UserID,
		Provider:         provider,
		Model:            s.Models[provider],
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSD:          costs.EstimateCost(provider, usage),
		LatencyMs:        latency.Milliseconds(),
		Outcome:          outcome,
	})
}

// transition moves the repo status and publishes matching progress.
func (s *Service) transition(ctx context.Context, analysisID, status, stage string, percent int, message string) {
	if err := s.Repo.UpdateStatus(ctx, analysisID, status); err != nil {
		telemetry.Error("analysis.transition_failed", map[string]any{
			"analysis_id": analysisID,
			"status":      status,
			"err":         err.Error(),
		})
	}
	s.setProgress(ctx, analysisID, status, stage, percent, message)
}

func (s *Service) setProgress(ctx context.Context, analysisID, status, stage string, percent int, message string) {
	if s.Progress == nil {
		return
	}
	state := progress.State{
		AnalysisID: analysisID,
		Status:     status,
		Stage:      stage,
		Percent:    percent,
		Message:    message,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.Progress.Set(ctx, state); err != nil {
		telemetry.Error("analysis.progress_failed", map[string]any{
			"analysis_id": analysisID,
			"err":         err.Error(),
		})
	}
}

// failAnalysis drives the job to failed. The final write uses a fresh
// context so a cancelled pipeline can still record its own failure.
func (s *Service) failAnalysis(ctx context.Context, analysisID string, cause error, startedAt time.Time) {
	code := classifyFailure(cause)
	message := sanitizeError(cause)

	if err := s.Repo.Finalize(context.Background(), analysisID, StatusFailed, nil, nil, &code, &message, time.Now().UTC()); err != nil {
		telemetry.Error("analysis.finalize_failed", map[string]any{
			"analysis_id": analysisID,
			"err":         err.Error(),
		})
	}
	s.setProgress(context.Background(), analysisID, StatusFailed, progress.StageFailed, 100, message)

	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDurationMs(float64(time.Since(startedAt).Milliseconds()))
	telemetry.Error("analysis.status", map[string]any{
		"analysis_id":       analysisID,
		"status_transition": "->failed",
		"error_code":        code,
		"error":             message,
		"duration_ms":       time.Since(startedAt).Milliseconds(),
		"request_id":        requestIDFromContext(ctx),
	})
}

func classifyFailure(err error) string {
	var ee *extract.Error
	if errors.As(err, &ee) {
		return ErrorCodeExtraction
	}
	if strings.Contains(err.Error(), "persist result") || strings.Contains(err.Error(), "object store") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

// sanitizeError flattens an error into a single line capped at 500 chars
// so it can be stored and surfaced to clients safely.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	message := strings.Join(strings.Fields(err.Error()), " ")
	if len(message) > 500 {
		message = message[:500]
	}
	return message
}
