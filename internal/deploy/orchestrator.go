package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"nemoship/internal/artifact"
	"nemoship/internal/cloud"
	"nemoship/internal/config"
	"nemoship/internal/fileutil"
	"nemoship/internal/ledger"
	"nemoship/internal/logging"
	"nemoship/internal/notifications"
	"nemoship/internal/services"
)

// ErrDeployInProgress reports that another process holds the deploy lock.
var ErrDeployInProgress = errors.New("another deployment is already running")

// Preparer produces the model archive.
type Preparer interface {
	PrepareDetailed(ctx context.Context, checkpointPath, modelID, archivePath string) (artifact.Result, error)
}

// RoleResolver creates or fetches the execution role.
type RoleResolver interface {
	Ensure(ctx context.Context, name string) (cloud.Role, error)
}

// ObjectStore holds uploaded archives.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) (bool, error)
	Upload(ctx context.Context, path, bucket, key string) (string, error)
}

// Platform registers models and endpoints.
type Platform interface {
	CreateModel(ctx context.Context, spec cloud.ModelSpec) error
	CreateEndpointConfig(ctx context.Context, spec cloud.EndpointConfigSpec) error
	DeployEndpoint(ctx context.Context, name, configName string) (string, error)
	WaitInService(ctx context.Context, name string, timeout time.Duration) error
}

// Dependencies are the collaborators a deployment needs.
type Dependencies struct {
	Ledger   *ledger.Store
	Preparer Preparer
	Roles    RoleResolver
	Storage  ObjectStore
	Platform Platform
	Identity cloud.STSAPI
	// Notifier receives the deployment outcome; nil disables notifications.
	Notifier notifications.Service
}

// Result summarizes a finished deployment.
type Result struct {
	DeploymentID       int64
	ArtifactID         int64
	ArchivePath        string
	ArchiveReused      bool
	RoleARN            string
	Bucket             string
	ModelDataURL       string
	ModelName          string
	EndpointConfigName string
	EndpointName       string
	Action             string
	InService          bool
	Elapsed            time.Duration
}

// Orchestrator sequences one deployment.
type Orchestrator struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
	lock   *flock.Flock
	now    func() time.Time
}

// New validates deps and returns an orchestrator for cfg.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil || deps.Ledger == nil || deps.Preparer == nil || deps.Storage == nil || deps.Platform == nil {
		return nil, errors.New("deploy requires config, ledger, preparer, storage and platform")
	}
	if cfg.AWS.RoleARN == "" && deps.Roles == nil {
		return nil, errors.New("deploy requires a role resolver when aws.role_arn is unset")
	}
	if cfg.AWS.Bucket == "" && deps.Identity == nil {
		return nil, errors.New("deploy requires an identity client when aws.bucket is unset")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "deploy"),
		lock:   flock.New(cfg.DeployLockPath()),
		now:    time.Now,
	}, nil
}

// Run executes the deployment. The ledger row is finished with the outcome
// even when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) (result Result, err error) {
	start := o.now()
	ctx = services.WithStage(ctx, "deploy")
	logger := logging.WithContext(ctx, o.logger)

	if err := fileutil.EnsureParentDir(o.cfg.DeployLockPath()); err != nil {
		return Result{}, fmt.Errorf("prepare state dir: %w", err)
	}
	ok, err := o.lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("acquire deploy lock: %w", err)
	}
	if !ok {
		return Result{}, ErrDeployInProgress
	}
	defer func() {
		if unlockErr := o.lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release deploy lock", logging.Error(unlockErr))
		}
	}()

	if n, err := o.deps.Ledger.ReconcileRunning(ctx); err != nil {
		return Result{}, err
	} else if n > 0 {
		logger.Warn("marked stale deployments as interrupted", logging.Int64("count", n))
	}

	art, prepared, err := o.prepare(ctx, logger)
	if err != nil {
		return Result{}, err
	}
	result.ArtifactID = art
	result.ArchivePath = prepared.ArchivePath
	result.ArchiveReused = prepared.Reused
	result.EndpointName = o.cfg.Deploy.EndpointName

	deployment := ledger.Deployment{
		ArtifactID:   art,
		EndpointName: o.cfg.Deploy.EndpointName,
		ImageURI:     o.cfg.Deploy.ImageURI,
		InstanceType: o.cfg.Deploy.InstanceType,
		StartedAt:    start.UTC(),
	}
	id, err := o.deps.Ledger.BeginDeployment(ctx, deployment)
	if err != nil {
		return Result{}, err
	}
	deployment.ID = id
	result.DeploymentID = id

	defer func() {
		deployment.ModelName = result.ModelName
		deployment.EndpointConfigName = result.EndpointConfigName
		deployment.ModelDataURL = result.ModelDataURL
		deployment.RoleARN = result.RoleARN
		deployment.Action = result.Action
		switch {
		case err == nil:
			deployment.Status = ledger.StatusSucceeded
		case ctx.Err() != nil:
			deployment.Status = ledger.StatusInterrupted
			deployment.ErrorMessage = err.Error()
		default:
			deployment.Status = ledger.StatusFailed
			deployment.ErrorMessage = err.Error()
		}
		if finishErr := o.deps.Ledger.FinishDeployment(context.WithoutCancel(ctx), deployment); finishErr != nil {
			logger.Error("failed to record deployment outcome", logging.Error(finishErr))
		}
		result.Elapsed = o.now().Sub(start)
		o.notifyOutcome(context.WithoutCancel(ctx), logger, result, err)
	}()

	if err := o.release(ctx, logger, &result); err != nil {
		logging.ErrorWithContext(logger, "deployment failed", "deploy_failed",
			logging.String("endpoint", o.cfg.Deploy.EndpointName),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return result, err
	}
	logger.Info("deployment complete",
		logging.String("endpoint", result.EndpointName),
		logging.String("action", result.Action),
		logging.String("model", result.ModelName),
		logging.String(logging.FieldEventType, "deploy_succeeded"),
	)
	return result, nil
}

func (o *Orchestrator) notifyOutcome(ctx context.Context, logger *slog.Logger, result Result, err error) {
	event := notifications.EventDeployCompleted
	payload := notifications.Payload{
		"endpoint": result.EndpointName,
		"action":   result.Action,
		"model":    result.ModelName,
		"elapsed":  result.Elapsed,
	}
	if err != nil {
		event = notifications.EventError
		payload = notifications.Payload{
			"context": "deploy " + result.EndpointName,
			"error":   err,
		}
	}
	if notifyErr := o.deps.Notifier.Publish(ctx, event, payload); notifyErr != nil {
		logger.Warn("deployment notification failed", logging.Error(notifyErr))
	}
}

func (o *Orchestrator) prepare(ctx context.Context, logger *slog.Logger) (int64, artifact.Result, error) {
	ctx = services.WithStage(ctx, "prepare")
	prepared, err := o.deps.Preparer.PrepareDetailed(ctx, o.cfg.Model.CheckpointPath, o.cfg.Model.ID, o.cfg.Model.ArchivePath)
	if err != nil {
		return 0, artifact.Result{}, err
	}
	record, err := RecordArtifact(ctx, o.deps.Ledger, o.cfg, prepared)
	if err != nil {
		return 0, artifact.Result{}, err
	}
	logger.Info("model archive ready",
		logging.String("archive", prepared.ArchivePath),
		logging.String("sha256", record.ArchiveSHA256),
		logging.Bool("reused", prepared.Reused),
	)
	if !prepared.Reused {
		payload := notifications.Payload{"model": o.cfg.Model.ID, "archive": prepared.ArchivePath}
		if err := o.deps.Notifier.Publish(ctx, notifications.EventArchiveBuilt, payload); err != nil {
			logger.Warn("archive notification failed", logging.Error(err))
		}
	}
	return record.ID, prepared, nil
}

func (o *Orchestrator) release(ctx context.Context, logger *slog.Logger, result *Result) error {
	roleARN, err := o.resolveRole(ctx)
	if err != nil {
		return err
	}
	result.RoleARN = roleARN

	bucket, err := o.resolveBucket(ctx)
	if err != nil {
		return err
	}
	result.Bucket = bucket
	if _, err := o.deps.Storage.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	url, err := o.deps.Storage.Upload(ctx, result.ArchivePath, bucket, o.cfg.ModelKey())
	if err != nil {
		return err
	}
	result.ModelDataURL = url

	if o.cfg.Deploy.ImageURI == "" {
		return services.Wrap(services.ErrConfiguration, "deploy", "check serving image",
			"deploy.image_uri is not set (or NEMOSHIP_IMAGE_URI)", nil)
	}

	now := o.now()
	modelBase := o.cfg.Deploy.ModelName
	if modelBase == "" {
		modelBase = o.cfg.AWS.Prefix
	}
	// Model names are immutable in SageMaker, so every run registers a new one.
	result.ModelName = cloud.NameFromBase(modelBase, now)
	if err := o.deps.Platform.CreateModel(ctx, cloud.ModelSpec{
		Name:         result.ModelName,
		ImageURI:     o.cfg.Deploy.ImageURI,
		ModelDataURL: url,
		RoleARN:      roleARN,
		Environment: map[string]string{
			"NEMOSHIP_MODEL_ID": o.cfg.Model.ID,
		},
	}); err != nil {
		return err
	}

	result.EndpointConfigName = cloud.NameFromBase(o.cfg.Deploy.EndpointName, now)
	if err := o.deps.Platform.CreateEndpointConfig(ctx, cloud.EndpointConfigSpec{
		Name:          result.EndpointConfigName,
		ModelName:     result.ModelName,
		VariantName:   o.cfg.Deploy.VariantName,
		InstanceType:  o.cfg.Deploy.InstanceType,
		InstanceCount: o.cfg.Deploy.InstanceCount,
	}); err != nil {
		return err
	}

	action, err := o.deps.Platform.DeployEndpoint(ctx, o.cfg.Deploy.EndpointName, result.EndpointConfigName)
	if err != nil {
		return err
	}
	result.Action = action

	if !o.cfg.Deploy.Wait {
		logger.Info("not waiting for endpoint", logging.String("endpoint", o.cfg.Deploy.EndpointName))
		return nil
	}
	timeout := time.Duration(o.cfg.Deploy.WaitTimeoutMinutes) * time.Minute
	logger.Info("waiting for endpoint", logging.String("endpoint", o.cfg.Deploy.EndpointName), logging.Duration("timeout", timeout))
	if err := o.deps.Platform.WaitInService(ctx, o.cfg.Deploy.EndpointName, timeout); err != nil {
		return err
	}
	result.InService = true
	return nil
}

func (o *Orchestrator) resolveRole(ctx context.Context) (string, error) {
	if o.cfg.AWS.RoleARN != "" {
		return o.cfg.AWS.RoleARN, nil
	}
	role, err := o.deps.Roles.Ensure(ctx, o.cfg.AWS.RoleName)
	if err != nil {
		return "", err
	}
	return role.ARN, nil
}

func (o *Orchestrator) resolveBucket(ctx context.Context) (string, error) {
	if o.cfg.AWS.Bucket != "" {
		return o.cfg.AWS.Bucket, nil
	}
	caller, err := cloud.Identify(ctx, o.deps.Identity)
	if err != nil {
		return "", err
	}
	return cloud.DefaultBucket(o.cfg.AWS.Region, caller.Account), nil
}
