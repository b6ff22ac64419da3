package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"nemoship/internal/services"
)

// STSAPI is the subset of the STS client used to identify the caller.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Caller identifies the credentials in use.
type Caller struct {
	Account string
	ARN     string
	UserID  string
}

// Identify returns the account and principal behind the active credentials.
func Identify(ctx context.Context, client STSAPI) (Caller, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Caller{}, services.Wrap(services.ErrCloud, "aws", "get caller identity", "", err)
	}
	return Caller{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// DefaultBucket returns the bucket name SageMaker tooling uses by default.
func DefaultBucket(region, account string) string {
	return fmt.Sprintf("sagemaker-%s-%s", region, account)
}
