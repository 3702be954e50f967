// Package documentary runs the seven-stage music documentary pipeline as a background job.
package documentary

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
)

// JobTracker is the part of the job manager the pipeline drives
type JobTracker interface {
	CreateJob(userID string, params models.JobParams) (*models.Job, error)
	UpdateProgress(jobID string, update models.ProgressUpdate) error
	CompleteJob(jobID string, result *models.JobResult) error
	FailJob(jobID string, jobErr error) error
}

// Dependencies groups the collaborators of the pipeline
type Dependencies struct {
	Jobs      JobTracker
	Catalog   interfaces.CatalogService
	Planner   interfaces.Planner
	Generator interfaces.Generator
	Narration interfaces.NarrationService
	Playlists interfaces.PlaylistStorage
}

// Service accepts documentary submissions and runs each one in its own goroutine
type Service struct {
	deps     Dependencies
	config   *common.Config
	logger   arbor.ILogger
	validate *validator.Validate

	callTimeout        time.Duration
	ttsTimeout         time.Duration
	backupDesiredCount int

	wg sync.WaitGroup
}

var _ interfaces.DocumentarySubmitter = (*Service)(nil)

// NewService creates the pipeline service
func NewService(deps Dependencies, config *common.Config, logger arbor.ILogger) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	s := &Service{
		deps:               deps,
		config:             config,
		logger:             logger,
		validate:           v,
		callTimeout:        config.CallTimeout(),
		ttsTimeout:         config.TTSTimeout(),
		backupDesiredCount: config.Pipeline.BackupDesiredCount,
	}
	if s.callTimeout <= 0 {
		s.callTimeout = 2 * time.Minute
	}
	if s.ttsTimeout <= 0 {
		s.ttsTimeout = 10 * time.Minute
	}
	if s.backupDesiredCount <= 0 {
		s.backupDesiredCount = 50
	}
	return s
}

// jsonFieldName reports validation failures with the wire names callers send
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return strings.ToLower(fld.Name[:1]) + fld.Name[1:]
	}
	return name
}

// normalizeMarket upper-cases country codes and keeps the catalog's from_token keyword as-is
func normalizeMarket(market string) string {
	market = strings.TrimSpace(market)
	if strings.EqualFold(market, models.MarketFromToken) {
		return models.MarketFromToken
	}
	return strings.ToUpper(market)
}

// Submit validates params, creates the job and starts the pipeline. It never waits for the pipeline.
func (s *Service) Submit(ctx context.Context, params models.JobParams) (*models.Job, error) {
	params.Topic = strings.TrimSpace(params.Topic)
	params.OwnerID = strings.TrimSpace(params.OwnerID)
	params.Market = normalizeMarket(params.Market)

	if err := s.validateParams(params); err != nil {
		return nil, err
	}

	if !s.config.HasLLMCredential() {
		return nil, ErrLLMNotConfigured
	}

	if params.Market == "" {
		params.Market = s.config.Spotify.DefaultMarket
	}
	if params.Market == "" {
		params.Market = "US"
	}

	job, err := s.deps.Jobs.CreateJob(params.OwnerID, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("owner", params.OwnerID).
		Str("topic", params.Topic).
		Msg("Documentary job submitted")

	jobID := job.ID
	s.wg.Add(1)
	common.SafeGo(s.logger, "documentary-"+jobID, func() {
		defer s.wg.Done()
		s.run(jobID, params)
	}, func(recovered interface{}) {
		if err := s.deps.Jobs.FailJob(jobID, fmt.Errorf("pipeline panic: %v", recovered)); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Could not fail job after panic")
		}
	})

	return job, nil
}

func (s *Service) validateParams(params models.JobParams) error {
	err := s.validate.Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing required field: %s", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid field %s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Wait blocks until every started pipeline has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

// run executes the pipeline and records the terminal state
func (s *Service) run(jobID string, params models.JobParams) {
	started := time.Now()
	r := &pipelineRun{
		svc:    s,
		jobID:  jobID,
		params: params,
		ctx:    context.Background(),
	}

	result, err := r.execute()
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job_id", jobID).
			Dur("elapsed", time.Since(started)).
			Msg("Documentary job failed")
		if ferr := s.deps.Jobs.FailJob(jobID, err); ferr != nil {
			s.logger.Warn().Err(ferr).Str("job_id", jobID).Msg("Could not record job failure")
		}
		return
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("playlist_id", result.PlaylistID).
		Dur("elapsed", time.Since(started)).
		Msg("Documentary job completed")
	if err := s.deps.Jobs.CompleteJob(jobID, result); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Could not record job completion")
	}
}
