package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/smithy-go"

	"nemoship/internal/logging"
	"nemoship/internal/services"
	"nemoship/internal/textutil"
)

// Endpoint actions recorded by deployments.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// maxResourceName is the SageMaker limit for model, config and endpoint names.
const maxResourceName = 63

// SageMakerAPI is the subset of the SageMaker client used for deployment.
type SageMakerAPI interface {
	CreateModel(ctx context.Context, params *sagemaker.CreateModelInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error)
	CreateEndpointConfig(ctx context.Context, params *sagemaker.CreateEndpointConfigInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointConfigOutput, error)
	CreateEndpoint(ctx context.Context, params *sagemaker.CreateEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointOutput, error)
	UpdateEndpoint(ctx context.Context, params *sagemaker.UpdateEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.UpdateEndpointOutput, error)
	DescribeEndpoint(ctx context.Context, params *sagemaker.DescribeEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error)
}

// ModelSpec describes a SageMaker model registration.
type ModelSpec struct {
	Name         string
	ImageURI     string
	ModelDataURL string
	RoleARN      string
	Environment  map[string]string
}

// EndpointConfigSpec describes a single-variant endpoint configuration.
type EndpointConfigSpec struct {
	Name          string
	ModelName     string
	VariantName   string
	InstanceType  string
	InstanceCount int
}

// Platform registers models and endpoints with SageMaker.
type Platform struct {
	client SageMakerAPI
	logger *slog.Logger
	// poll overrides the waiter's minimum delay; zero keeps the SDK default.
	poll time.Duration
}

// NewPlatform wires a platform to a SageMaker client.
func NewPlatform(client SageMakerAPI, logger *slog.Logger) *Platform {
	return &Platform{client: client, logger: logging.NewComponentLogger(logger, "sagemaker")}
}

// WithPollInterval sets the InService waiter delay (for testing).
func (p *Platform) WithPollInterval(d time.Duration) *Platform {
	p.poll = d
	return p
}

// CreateModel registers the serving image with the packaged archive.
func (p *Platform) CreateModel(ctx context.Context, spec ModelSpec) error {
	container := &smtypes.ContainerDefinition{
		Image:        aws.String(spec.ImageURI),
		ModelDataUrl: aws.String(spec.ModelDataURL),
	}
	if len(spec.Environment) > 0 {
		container.Environment = spec.Environment
	}
	if _, err := p.client.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(spec.Name),
		ExecutionRoleArn: aws.String(spec.RoleARN),
		PrimaryContainer: container,
	}); err != nil {
		return services.Wrap(services.ErrCloud, "deploy", "create model", spec.Name, err)
	}
	p.logger.Info("registered model", logging.String("model", spec.Name), logging.String("image", spec.ImageURI))
	return nil
}

// CreateEndpointConfig creates a single production variant configuration.
func (p *Platform) CreateEndpointConfig(ctx context.Context, spec EndpointConfigSpec) error {
	if _, err := p.client.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(spec.Name),
		ProductionVariants: []smtypes.ProductionVariant{{
			VariantName:          aws.String(spec.VariantName),
			ModelName:            aws.String(spec.ModelName),
			InstanceType:         smtypes.ProductionVariantInstanceType(spec.InstanceType),
			InitialInstanceCount: aws.Int32(int32(spec.InstanceCount)),
		}},
	}); err != nil {
		return services.Wrap(services.ErrCloud, "deploy", "create endpoint config", spec.Name, err)
	}
	return nil
}

// EndpointStatus returns the endpoint status, or exists=false when SageMaker
// has no endpoint by that name.
func (p *Platform) EndpointStatus(ctx context.Context, name string) (status string, exists bool, err error) {
	out, err := p.client.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{EndpointName: aws.String(name)})
	if err != nil {
		if isMissingEndpoint(err) {
			return "", false, nil
		}
		return "", false, services.Wrap(services.ErrCloud, "deploy", "describe endpoint", name, err)
	}
	return string(out.EndpointStatus), true, nil
}

// DeployEndpoint points the endpoint at configName, creating it when it does
// not exist yet. It returns ActionCreate or ActionUpdate.
func (p *Platform) DeployEndpoint(ctx context.Context, name, configName string) (string, error) {
	_, exists, err := p.EndpointStatus(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		if _, err := p.client.UpdateEndpoint(ctx, &sagemaker.UpdateEndpointInput{
			EndpointName:       aws.String(name),
			EndpointConfigName: aws.String(configName),
		}); err != nil {
			return "", services.Wrap(services.ErrCloud, "deploy", "update endpoint", name, err)
		}
		p.logger.Info("updating endpoint", logging.String("endpoint", name), logging.String("config", configName))
		return ActionUpdate, nil
	}
	if _, err := p.client.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(name),
		EndpointConfigName: aws.String(configName),
	}); err != nil {
		return "", services.Wrap(services.ErrCloud, "deploy", "create endpoint", name, err)
	}
	p.logger.Info("creating endpoint", logging.String("endpoint", name), logging.String("config", configName))
	return ActionCreate, nil
}

// WaitInService blocks until the endpoint reaches InService, fails, or
// timeout elapses.
func (p *Platform) WaitInService(ctx context.Context, name string, timeout time.Duration) error {
	waiter := sagemaker.NewEndpointInServiceWaiter(p.client, func(o *sagemaker.EndpointInServiceWaiterOptions) {
		if p.poll > 0 {
			o.MinDelay = p.poll
			o.MaxDelay = p.poll
		}
	})
	start := time.Now()
	if err := waiter.Wait(ctx, &sagemaker.DescribeEndpointInput{EndpointName: aws.String(name)}, timeout); err != nil {
		if strings.Contains(err.Error(), "exceeded max wait time") {
			return services.Wrap(services.ErrTimeout, "deploy", "wait for endpoint",
				fmt.Sprintf("%s not InService after %s", name, timeout), err)
		}
		return services.Wrap(services.ErrCloud, "deploy", "wait for endpoint", name, err)
	}
	p.logger.Info("endpoint in service",
		logging.String("endpoint", name),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// NameFromBase appends a millisecond timestamp to base, trimming base so the
// result fits SageMaker's name limit.
func NameFromBase(base string, now time.Time) string {
	now = now.UTC()
	suffix := fmt.Sprintf("%s-%03d", now.Format("2006-01-02-15-04-05"), now.Nanosecond()/int(time.Millisecond))
	base = textutil.ResourceName(base, "nemoship")
	if limit := maxResourceName - len(suffix) - 1; len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	return base + "-" + suffix
}

func isMissingEndpoint(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationException" && strings.Contains(apiErr.ErrorMessage(), "Could not find")
}
