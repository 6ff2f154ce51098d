// Package runner orchestrates the MySQL dump pipeline.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/fgeck/mysql-dr-dump/internal/services/command"
	"github.com/fgeck/mysql-dr-dump/internal/services/metrics"
	"github.com/fgeck/mysql-dr-dump/internal/services/mysql"
	"github.com/fgeck/mysql-dr-dump/internal/services/params"
	"github.com/fgeck/mysql-dr-dump/internal/services/secrets"
	"github.com/fgeck/mysql-dr-dump/internal/services/storage"
	"github.com/fgeck/mysql-dr-dump/internal/services/telegram"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline stages, in execution order.
const (
	StageCheckDisk        = "check_disk"
	StageCheckToolVersion = "check_tool_version"
	StageCheckDatabases   = "check_databases"
	StageDump             = "dump"
	StageCompress         = "compress"
	StageUpload           = "upload"
)

const (
	rawDumpPattern    = "dbdump-mysql-*.sql"
	compressedPattern = "dbdump-mysql-*.tar.gz"
)

// Service defines the interface for the dump pipeline.
type Service interface {
	Run(ctx context.Context, spec models.DbConnectionSpec) (*models.DumpResult, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	commands    command.Service
	databases   mysql.Service
	secretsSvc  secrets.Service
	storageSvc  storage.Service
	paramsSvc   params.Service
	telegramSvc telegram.Service
	metricsSvc  metrics.Service
	cfg         models.AppConfig
	logger      zerolog.Logger
}

// New creates a new runner whose storage and parameter lookups use the
// scope described by awsCfg.
func New(logger zerolog.Logger, cfg models.AppConfig, awsCfg aws.Config, secretsSvc secrets.Service) *Impl {
	return &Impl{
		commands:    command.New(logger, cfg.Dump.CommandTimeout),
		databases:   mysql.New(logger, cfg.Dump.ConnectTimeout),
		secretsSvc:  secretsSvc,
		storageSvc:  storage.New(logger, awsCfg),
		paramsSvc:   params.New(logger, awsCfg),
		telegramSvc: telegram.New(logger),
		metricsSvc:  metrics.New(logger),
		cfg:         cfg,
		logger:      logger,
	}
}

// NewWithServices creates a new runner with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	cfg models.AppConfig,
	commands command.Service,
	databases mysql.Service,
	secretsSvc secrets.Service,
	storageSvc storage.Service,
	paramsSvc params.Service,
	telegramSvc telegram.Service,
	metricsSvc metrics.Service,
) *Impl {
	return &Impl{
		commands:    commands,
		databases:   databases,
		secretsSvc:  secretsSvc,
		storageSvc:  storageSvc,
		paramsSvc:   paramsSvc,
		telegramSvc: telegramSvc,
		metricsSvc:  metricsSvc,
		cfg:         cfg,
		logger:      logger,
	}
}

// dumpRun carries the state shared by the stages of one run.
type dumpRun struct {
	spec       models.DbConnectionSpec
	logger     zerolog.Logger
	password   string
	resolved   bool
	rawDump    *models.DumpArtifact
	compressed *models.DumpArtifact
	result     *models.DumpResult
}

type stage struct {
	name     string
	fallback apperr.Kind
	run      func(ctx context.Context, r *dumpRun) error
}

// Run executes the pipeline. Stages run strictly in order and the first
// failure stops the run; the returned error carries the failing stage.
func (s *Impl) Run(ctx context.Context, spec models.DbConnectionSpec) (*models.DumpResult, error) {
	startTime := time.Now()
	if spec.Port == 0 {
		spec.Port = command.DefaultMySQLPort
	}

	runID := uuid.NewString()
	r := &dumpRun{
		spec:   spec,
		logger: s.logger.With().Str("run_id", runID).Str("host", spec.Host).Logger(),
		result: &models.DumpResult{RunID: runID},
	}

	r.logger.Info().
		Strs("databases", spec.Databases).
		Str("work_dir", s.cfg.Dump.WorkDir).
		Msg("starting dump run")

	var failedStage string
	var runErr error
	defer func() {
		r.result.Duration = time.Since(startTime)
		s.publish(ctx, r, startTime, failedStage, runErr)
	}()

	stages := []stage{
		{StageCheckDisk, apperr.KindToolFailure, s.checkDisk},
		{StageCheckToolVersion, apperr.KindToolFailure, s.checkToolVersion},
		{StageCheckDatabases, apperr.KindProvider, s.checkDatabases},
		{StageDump, apperr.KindToolFailure, s.dumpToLocal},
		{StageCompress, apperr.KindToolFailure, s.compress},
		{StageUpload, apperr.KindProvider, s.upload},
	}

	for _, st := range stages {
		stageStart := time.Now()
		if err := st.run(ctx, r); err != nil {
			failedStage = st.name
			runErr = apperr.WithStage(err, st.name, st.fallback)
			r.logger.Error().Err(runErr).Str("stage", st.name).Msg("dump run failed")
			s.reportRetained(r)
			return nil, runErr
		}
		elapsed := time.Since(stageStart)
		r.result.Stages = append(r.result.Stages, models.StageTiming{Stage: st.name, Duration: elapsed})
		r.logger.Debug().Str("stage", st.name).Dur("duration", elapsed).Msg("stage completed")
	}

	r.logger.Info().
		Str("artifact", r.result.Artifact.Name()).
		Str("key", r.result.ArtifactKey).
		Int64("size_bytes", r.result.SizeBytes).
		Dur("duration", time.Since(startTime)).
		Msg("dump run completed successfully")

	return r.result, nil
}

func (s *Impl) checkDisk(ctx context.Context, r *dumpRun) error {
	workDir := s.cfg.Dump.WorkDir
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return apperr.New(apperr.KindToolFailure, fmt.Sprintf("creating work directory %s", workDir), err)
	}

	df := command.DiskUsage(s.cfg.Dump.DfPath).Target(workDir)
	if s.cfg.Dump.MinFreeMB > 0 {
		df = df.Portable()
	}

	result, err := s.commands.Run(ctx, df.Build())
	if err != nil {
		return err
	}
	if !result.Success() {
		return apperr.ToolFailure(fmt.Sprintf("disk check exited with status %d", result.ExitCode), result.Output)
	}

	r.logger.Info().Str("output", strings.TrimSpace(result.Output)).Msg("disk check ok")

	if s.cfg.Dump.MinFreeMB <= 0 {
		return nil
	}
	availableKB, err := command.ParseAvailableKB(result.Output)
	if err != nil {
		return err
	}
	if availableKB < s.cfg.Dump.MinFreeMB*1024 {
		return apperr.New(apperr.KindToolFailure, fmt.Sprintf("insufficient disk space in %s: %d MB available, %d MB required",
			workDir, availableKB/1024, s.cfg.Dump.MinFreeMB), nil)
	}
	return nil
}

func (s *Impl) checkToolVersion(ctx context.Context, r *dumpRun) error {
	cmd, err := command.MySQLDump(s.cfg.Dump.MySQLDumpPath).Version().Build()
	if err != nil {
		return err
	}

	result, err := s.commands.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !result.Success() {
		return apperr.ToolFailure(fmt.Sprintf("unable to check version of mysqldump: exit status %d", result.ExitCode), result.Output)
	}

	r.logger.Info().Str("version", strings.TrimSpace(result.Output)).Msg("mysqldump version ok")
	return nil
}

func (s *Impl) checkDatabases(ctx context.Context, r *dumpRun) error {
	if err := validateSpec(r.spec); err != nil {
		return err
	}

	password, err := s.resolvePassword(ctx, r)
	if err != nil {
		return err
	}

	live, err := s.databases.ListDatabases(ctx, r.spec, password)
	if err != nil {
		return err
	}

	if missing := MissingDatabases(r.spec.Databases, live); len(missing) > 0 {
		return apperr.MissingDatabases(missing)
	}

	r.logger.Info().Int("server_databases", len(live)).Msg("requested databases present")
	return nil
}

func (s *Impl) dumpToLocal(ctx context.Context, r *dumpRun) error {
	password, err := s.resolvePassword(ctx, r)
	if err != nil {
		return err
	}

	path, err := createTemp(s.cfg.Dump.WorkDir, rawDumpPattern)
	if err != nil {
		return err
	}
	r.rawDump = &models.DumpArtifact{Path: path, Stage: models.ArtifactRawDump}

	cmd, err := command.MySQLDump(s.cfg.Dump.MySQLDumpPath).
		User(r.spec.Username).
		Password(password).
		Host(r.spec.Host).
		Port(r.spec.Port).
		Databases(r.spec.Databases...).
		ResultFile(path).
		Events().
		Routines().
		Triggers().
		Compress().
		OrderByPrimary().
		SingleTransaction().
		Build()
	if err != nil {
		return err
	}

	result, err := s.commands.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !result.Success() {
		return apperr.ToolFailure(fmt.Sprintf("mysqldump exited with status %d", result.ExitCode), result.Output)
	}

	r.logger.Info().Str("file", path).Msg("dump written")
	return nil
}

func (s *Impl) compress(ctx context.Context, r *dumpRun) error {
	target, err := createTemp(s.cfg.Dump.WorkDir, compressedPattern)
	if err != nil {
		return err
	}
	r.compressed = &models.DumpArtifact{Path: target, Stage: models.ArtifactCompressed}

	cmd, err := command.Tar(s.cfg.Dump.TarPath).CompressFile(target, r.rawDump.Path).Build()
	if err != nil {
		return err
	}

	result, err := s.commands.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !result.Success() {
		return apperr.ToolFailure(fmt.Sprintf("tar exited with status %d", result.ExitCode), result.Output)
	}

	r.logger.Info().Str("file", target).Msg("dump compressed")
	if !s.cfg.Dump.KeepArtifacts {
		s.removeArtifact(r, r.rawDump)
		r.rawDump = nil
	}
	return nil
}

func (s *Impl) upload(ctx context.Context, r *dumpRun) error {
	bucket, err := s.paramsSvc.GetParameter(ctx, s.cfg.Storage.BucketParameter)
	if err != nil {
		return err
	}

	artifact := *r.compressed
	key := storage.ObjectKey(s.cfg.Dump.WorkDir, artifact.Name())
	size, err := s.storageSvc.UploadFile(ctx, bucket, key, artifact.Path)
	if err != nil {
		return err
	}

	r.result.Artifact = artifact
	r.result.ArtifactKey = key
	r.result.SizeBytes = size

	r.logger.Info().Str("bucket", bucket).Str("key", key).Msg("dump uploaded")
	if !s.cfg.Dump.KeepArtifacts {
		s.removeArtifact(r, r.compressed)
		r.compressed = nil
	}
	return nil
}

// resolvePassword fetches the password once per run.
func (s *Impl) resolvePassword(ctx context.Context, r *dumpRun) (string, error) {
	if r.resolved {
		return r.password, nil
	}
	if r.spec.PasswordID == "" {
		return "", apperr.New(apperr.KindValidation, "password id is required", nil)
	}
	password, err := s.secretsSvc.GetSecret(ctx, r.spec.PasswordID)
	if err != nil {
		return "", err
	}
	r.password = password
	r.resolved = true
	return password, nil
}

func validateSpec(spec models.DbConnectionSpec) error {
	var errs []error
	if spec.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if spec.Port < 0 || spec.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", spec.Port))
	}
	if spec.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if len(spec.Databases) == 0 {
		errs = append(errs, errors.New("at least one database is required"))
	}
	if len(errs) > 0 {
		return apperr.New(apperr.KindValidation, "invalid connection spec", errors.Join(errs...))
	}
	return nil
}

// MissingDatabases returns the requested names absent from live, in request
// order and without duplicates. The comparison is exact and case-sensitive.
func MissingDatabases(requested, live []string) []string {
	present := make(map[string]struct{}, len(live))
	for _, name := range live {
		present[name] = struct{}{}
	}

	var missing []string
	seen := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		if _, ok := present[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, name)
	}
	return missing
}

func createTemp(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", apperr.New(apperr.KindToolFailure, fmt.Sprintf("creating temp file in %s", dir), err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", apperr.New(apperr.KindToolFailure, fmt.Sprintf("closing temp file %s", path), err)
	}
	return path, nil
}

func (s *Impl) removeArtifact(r *dumpRun, artifact *models.DumpArtifact) {
	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn().Err(err).Str("file", artifact.Path).Msg("failed to remove artifact")
		return
	}
	r.logger.Debug().Str("file", artifact.Path).Str("artifact", string(artifact.Stage)).Msg("artifact removed")
}

// reportRetained logs the artifacts a failed run leaves behind for inspection.
func (s *Impl) reportRetained(r *dumpRun) {
	for _, artifact := range []*models.DumpArtifact{r.rawDump, r.compressed} {
		if artifact == nil {
			continue
		}
		r.logger.Warn().
			Str("file", artifact.Path).
			Str("artifact", string(artifact.Stage)).
			Msg("artifact retained after failure")
	}
}

// publish sends the optional notification and metrics. Failures here are
// logged and never change the run's outcome.
func (s *Impl) publish(ctx context.Context, r *dumpRun, startTime time.Time, failedStage string, runErr error) {
	if s.cfg.Telegram != nil {
		s.sendNotification(ctx, r, startTime, failedStage, runErr)
	}
	if s.cfg.Metrics != nil {
		outcome := metrics.RunOutcome{
			Host:        r.spec.Host,
			Success:     runErr == nil,
			FailedStage: failedStage,
			Finished:    time.Now(),
			Duration:    time.Since(startTime),
			SizeBytes:   r.result.SizeBytes,
			Stages:      r.result.Stages,
		}
		if err := s.metricsSvc.PushRun(ctx, *s.cfg.Metrics, outcome); err != nil {
			r.logger.Error().Err(err).Msg("failed to push metrics")
		}
	}
}

func (s *Impl) sendNotification(ctx context.Context, r *dumpRun, startTime time.Time, failedStage string, runErr error) {
	msg := models.TelegramMessage{
		Success:   runErr == nil,
		RunID:     r.result.RunID,
		Host:      r.spec.Host,
		Databases: r.spec.Databases,
		StartTime: startTime,
		Duration:  time.Since(startTime),
	}

	if runErr != nil {
		msg.FailedStage = failedStage
		msg.ErrorMessage = runErr.Error()
	} else {
		msg.ArtifactKey = r.result.ArtifactKey
		msg.SizeBytes = r.result.SizeBytes
	}

	result, err := s.telegramSvc.SendNotification(ctx, *s.cfg.Telegram, msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		r.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	r.logger.Info().Msg("Telegram notification sent")
}
