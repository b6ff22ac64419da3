package cloud

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"nemoship/internal/logging"
	"nemoship/internal/services"
)

const (
	// SageMakerFullAccessPolicy is the managed policy attached to the role.
	SageMakerFullAccessPolicy = "arn:aws:iam::aws:policy/AmazonSageMakerFullAccess"

	sageMakerTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "sagemaker.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`
)

// IAMAPI is the subset of the IAM client used for role provisioning.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// Role describes a resolved execution role.
type Role struct {
	Name    string
	ARN     string
	Created bool
}

// RoleProvisioner creates or fetches the SageMaker execution role.
type RoleProvisioner struct {
	client IAMAPI
	logger *slog.Logger
}

// NewRoleProvisioner wires a provisioner to an IAM client.
func NewRoleProvisioner(client IAMAPI, logger *slog.Logger) *RoleProvisioner {
	return &RoleProvisioner{client: client, logger: logging.NewComponentLogger(logger, "iam")}
}

// Ensure returns the role called name, creating it with the SageMaker trust
// policy when it does not exist. A freshly created role gets the SageMaker
// full access policy attached.
func (p *RoleProvisioner) Ensure(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, services.Wrap(services.ErrConfiguration, "role", "ensure", "role name is empty", nil)
	}

	created, err := p.client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(sageMakerTrustPolicy),
		Description:              aws.String("Execution role for nemoship SageMaker endpoints"),
	})
	if err == nil {
		role := Role{Name: name, ARN: aws.ToString(created.Role.Arn), Created: true}
		if _, err := p.client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: aws.String(SageMakerFullAccessPolicy),
		}); err != nil {
			return Role{}, services.Wrap(services.ErrCloud, "role", "attach policy", name, err)
		}
		p.logger.Info("created execution role",
			logging.String("role", name),
			logging.String("arn", role.ARN),
			logging.String(logging.FieldEventType, "role_created"),
		)
		return role, nil
	}

	var exists *iamtypes.EntityAlreadyExistsException
	if !errors.As(err, &exists) {
		return Role{}, services.Wrap(services.ErrCloud, "role", "create role", name, err)
	}

	got, err := p.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return Role{}, services.Wrap(services.ErrCloud, "role", "get role", name, err)
	}
	role := Role{Name: name, ARN: aws.ToString(got.Role.Arn)}
	p.logger.Info("using existing execution role", logging.String("role", name), logging.String("arn", role.ARN))
	return role, nil
}
