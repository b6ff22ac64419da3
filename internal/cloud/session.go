package cloud

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"nemoship/internal/services"
)

// Settings selects the credentials and region used for every client.
type Settings struct {
	Region  string
	Profile string
}

// LoadConfig resolves an aws.Config through the default credential chain.
func LoadConfig(ctx context.Context, settings Settings) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(settings.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile := strings.TrimSpace(settings.Profile); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, services.Wrap(services.ErrConfiguration, "aws", "load config", "", err)
	}
	if cfg.Region == "" {
		return aws.Config{}, services.Wrap(services.ErrConfiguration, "aws", "load config",
			"no region configured (set aws.region or AWS_REGION)", nil)
	}
	return cfg, nil
}

// Clients bundles the service clients built from one aws.Config.
type Clients struct {
	Region    string
	IAM       *iam.Client
	STS       *sts.Client
	S3        *s3.Client
	SageMaker *sagemaker.Client
	Runtime   *sagemakerruntime.Client
}

// NewClients builds every service client from cfg.
func NewClients(cfg aws.Config) *Clients {
	return &Clients{
		Region:    cfg.Region,
		IAM:       iam.NewFromConfig(cfg),
		STS:       sts.NewFromConfig(cfg),
		S3:        s3.NewFromConfig(cfg),
		SageMaker: sagemaker.NewFromConfig(cfg),
		Runtime:   sagemakerruntime.NewFromConfig(cfg),
	}
}

// Uploader returns a multipart uploader over the S3 client.
func (c *Clients) Uploader() *manager.Uploader {
	return manager.NewUploader(c.S3)
}
