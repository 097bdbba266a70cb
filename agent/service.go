package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/fluxagent/config"
	"github.com/BaSui01/fluxagent/internal/history"
	"github.com/BaSui01/fluxagent/internal/storage/blob"
	"github.com/BaSui01/fluxagent/llm/image"
	"github.com/BaSui01/fluxagent/types"
	"github.com/BaSui01/fluxagent/workspace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Generation outcomes reported to Observer and stored in history.
const (
	StatusSucceeded    = history.StatusSucceeded
	StatusUploadFailed = history.StatusUploadFailed
	StatusFailed       = history.StatusFailed
)

// HistoryRecorder persists one row per generateImage run.
type HistoryRecorder interface {
	Record(ctx context.Context, g *history.Generation) error
}

// Observer receives generation and upload outcomes, typically metrics.
type Observer interface {
	ObserveGeneration(status string, duration time.Duration)
	ObserveUpload(uploader, status string)
}

// Deps are the collaborators of a Service. Generator is required.
type Deps struct {
	Config    config.AgentConfig
	Generator image.Generator
	// Store receives a local copy when SaveLocal is set.
	Store     blob.Store
	SaveLocal bool
	Uploader  workspace.Uploader
	History   HistoryRecorder
	Observer  Observer
	// Closers run in parallel during Shutdown.
	Closers []func(ctx context.Context) error
	Logger  *zap.Logger
}

// GenerationResult describes a completed generateImage run.
type GenerationResult struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	Location    string `json:"location,omitempty"`
	WorkspaceID int    `json:"workspace_id,omitempty"`
	Uploaded    bool   `json:"uploaded"`
	UploadError string `json:"upload_error,omitempty"`
	Bytes       int    `json:"bytes"`
	Attempts    int    `json:"attempts"`
	ContentType string `json:"content_type,omitempty"`
}

// Service is the image generation agent: a capability registry plus the
// collaborators generateImage needs. Construct with NewService.
type Service struct {
	cfg      config.AgentConfig
	deps     Deps
	registry *Registry
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
}

// NewService wires the agent and registers its capabilities.
func NewService(deps Deps) (*Service, error) {
	if deps.Generator == nil {
		return nil, types.NewConfigurationError("agent requires an image generator")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Uploader == nil {
		deps.Uploader = workspace.NopUploader{}
	}
	if deps.Config.Name == "" {
		deps.Config.Name = config.DefaultAgentConfig().Name
	}
	if deps.Config.SystemPrompt == "" {
		deps.Config.SystemPrompt = config.DefaultSystemPrompt
	}

	logger := deps.Logger.With(zap.String("component", "agent"), zap.String("agent", deps.Config.Name))
	s := &Service{
		cfg:      deps.Config,
		deps:     deps,
		registry: NewRegistry(deps.Config.CapabilityTimeout, logger),
		logger:   logger,
	}
	if err := s.registerCapabilities(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the configured agent name.
func (s *Service) Name() string { return s.cfg.Name }

// SystemPrompt returns the agent description.
func (s *Service) SystemPrompt() string { return s.cfg.SystemPrompt }

// Registry exposes the capability registry.
func (s *Service) Registry() *Registry { return s.registry }

// Running reports whether Start succeeded and Shutdown has not run.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Start prepares persistent collaborators.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("agent already running")
	}

	if m, ok := s.deps.History.(interface{ AutoMigrate(context.Context) error }); ok {
		if err := m.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("migrate generation history: %w", err)
		}
	}

	s.running = true
	s.logger.Info("agent started",
		zap.Int("capabilities", len(s.registry.List())),
		zap.String("generator", s.deps.Generator.Name()),
		zap.String("uploader", s.deps.Uploader.Name()),
	)
	return nil
}

// Shutdown releases collaborators in parallel. Safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	closers := s.deps.Closers
	s.deps.Closers = nil
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, closeFn := range closers {
		closeFn := closeFn
		g.Go(func() error { return closeFn(gctx) })
	}
	err := g.Wait()

	if wasRunning {
		s.logger.Info("agent stopped", zap.Error(err))
	}
	return err
}

// Run executes a capability by name.
func (s *Service) Run(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	return s.registry.Run(ctx, name, raw)
}

// Generate fetches an image for in.Prompt, keeps a local copy when enabled
// and uploads it when in.WorkspaceID is set. Upload failures do not fail
// the call: the result message reports the partial success instead.
func (s *Service) Generate(ctx context.Context, in GenerateImageInput) (*GenerationResult, error) {
	if err := in.Validate(); err != nil {
		return nil, types.NewError(types.ErrToolValidation, "invalid arguments").WithCause(err)
	}

	start := time.Now()
	rec := &history.Generation{
		Prompt:      in.Prompt,
		Filename:    in.Filename,
		WorkspaceID: in.WorkspaceID,
	}

	payload, err := s.deps.Generator.Generate(ctx, &image.GenerationRequest{Prompt: in.Prompt})
	if err != nil {
		s.finish(ctx, rec, StatusFailed, start, func(g *history.Generation) { g.Error = err.Error() })
		return nil, fmt.Errorf("error generating image: %w", err)
	}

	res := &GenerationResult{
		Filename:    in.Filename,
		WorkspaceID: in.WorkspaceID,
		Bytes:       payload.Size(),
		Attempts:    payload.Attempts,
		ContentType: payload.ContentType,
	}
	rec.Model = payload.Model
	rec.Attempts = payload.Attempts
	rec.SizeBytes = payload.Size()

	if s.deps.SaveLocal && s.deps.Store != nil {
		info, err := s.deps.Store.Put(ctx, in.Filename, bytes.NewReader(payload.Data), blob.PutOptions{
			ContentType: payload.ContentType,
			Metadata:    map[string]string{"model": payload.Model},
		})
		if err != nil {
			s.logger.Warn("failed to save image locally", zap.String("filename", in.Filename), zap.Error(err))
			if in.WorkspaceID <= 0 {
				storageErr := types.NewError(types.ErrStorage, "image generated but could not be saved").WithCause(err)
				s.finish(ctx, rec, StatusFailed, start, func(g *history.Generation) { g.Error = storageErr.Error() })
				return nil, storageErr
			}
		} else {
			res.Location = info.Location
		}
	}
	rec.Location = res.Location

	if in.WorkspaceID > 0 {
		uploadErr := s.deps.Uploader.Upload(ctx, workspace.UploadRequest{
			WorkspaceID:    in.WorkspaceID,
			Path:           in.Filename,
			Data:           payload.Data,
			ContentType:    payload.ContentType,
			SkipSummarizer: true,
		})
		if uploadErr != nil {
			msg := uploadErrorMessage(uploadErr)
			s.observeUpload("failed")
			s.logger.Warn("workspace upload failed",
				zap.Int("workspace_id", in.WorkspaceID),
				zap.String("filename", in.Filename),
				zap.Error(uploadErr),
			)
			res.UploadError = msg
			res.Message = fmt.Sprintf("Image generated as %s but workspace upload failed (workspace %d): %s",
				in.Filename, in.WorkspaceID, msg)
			s.finish(ctx, rec, StatusUploadFailed, start, func(g *history.Generation) { g.UploadError = msg })
			return res, nil
		}

		s.observeUpload("succeeded")
		res.Uploaded = true
		res.Message = fmt.Sprintf("Image generated and saved as %s (workspace %d)", in.Filename, in.WorkspaceID)
		s.finish(ctx, rec, StatusSucceeded, start, nil)
		return res, nil
	}

	if res.Location != "" {
		res.Message = fmt.Sprintf("Image generated and saved as %s", res.Location)
	} else {
		res.Message = fmt.Sprintf("Image generated (%d bytes) but not stored: no workspace specified", res.Bytes)
	}
	s.finish(ctx, rec, StatusSucceeded, start, nil)
	return res, nil
}

// finish records history and metrics. Recording failures are logged only.
func (s *Service) finish(ctx context.Context, rec *history.Generation, status string, start time.Time, mutate func(*history.Generation)) {
	elapsed := time.Since(start)
	rec.Status = status
	rec.DurationMs = elapsed.Milliseconds()
	if mutate != nil {
		mutate(rec)
	}

	if s.deps.Observer != nil {
		s.deps.Observer.ObserveGeneration(status, elapsed)
	}
	if s.deps.History != nil {
		// 历史写入不受请求取消影响
		if err := s.deps.History.Record(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Warn("failed to record generation", zap.Error(err))
		}
	}

	s.logger.Info("generation finished",
		zap.String("status", status),
		zap.Int("attempts", rec.Attempts),
		zap.Int("bytes", rec.SizeBytes),
		zap.Duration("duration", elapsed),
	)
}

func (s *Service) observeUpload(status string) {
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveUpload(s.deps.Uploader.Name(), status)
	}
}

// uploadErrorMessage strips the error code prefix for caller-facing text.
func uploadErrorMessage(err error) string {
	e, ok := types.AsError(err)
	if !ok {
		return err.Error()
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}
