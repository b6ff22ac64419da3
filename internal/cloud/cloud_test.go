package cloud_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"nemoship/internal/cloud"
	"nemoship/internal/services"
	"nemoship/internal/testsupport"
)

type stubIAM struct {
	createErr error
	attached  []string
	calls     []string
}

func (s *stubIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	s.calls = append(s.calls, "CreateRole")
	if !strings.Contains(aws.ToString(in.AssumeRolePolicyDocument), "sagemaker.amazonaws.com") {
		return nil, errors.New("trust policy missing sagemaker principal")
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{Arn: aws.String("arn:aws:iam::123456789012:role/" + aws.ToString(in.RoleName))}}, nil
}

func (s *stubIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	s.calls = append(s.calls, "GetRole")
	return &iam.GetRoleOutput{Role: &iamtypes.Role{Arn: aws.String("arn:aws:iam::123456789012:role/existing/" + aws.ToString(in.RoleName))}}, nil
}

func (s *stubIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	s.calls = append(s.calls, "AttachRolePolicy")
	s.attached = append(s.attached, aws.ToString(in.PolicyArn))
	return &iam.AttachRolePolicyOutput{}, nil
}

func TestRoleProvisionerCreatesRole(t *testing.T) {
	stub := &stubIAM{}
	role, err := cloud.NewRoleProvisioner(stub, nil).Ensure(context.Background(), "SageMakerExecutionRole-Parakeet")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !role.Created || role.ARN != "arn:aws:iam::123456789012:role/SageMakerExecutionRole-Parakeet" {
		t.Fatalf("unexpected role %+v", role)
	}
	if len(stub.attached) != 1 || stub.attached[0] != cloud.SageMakerFullAccessPolicy {
		t.Fatalf("expected SageMaker policy attached, got %v", stub.attached)
	}
}

func TestRoleProvisionerFetchesExistingRole(t *testing.T) {
	stub := &stubIAM{createErr: &iamtypes.EntityAlreadyExistsException{Message: aws.String("exists")}}
	role, err := cloud.NewRoleProvisioner(stub, nil).Ensure(context.Background(), "role")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if role.Created || !strings.HasSuffix(role.ARN, "existing/role") {
		t.Fatalf("unexpected role %+v", role)
	}
	if strings.Join(stub.calls, ",") != "CreateRole,GetRole" {
		t.Fatalf("unexpected calls %v", stub.calls)
	}
}

func TestRoleProvisionerErrors(t *testing.T) {
	stub := &stubIAM{createErr: errors.New("AccessDenied")}
	_, err := cloud.NewRoleProvisioner(stub, nil).Ensure(context.Background(), "role")
	if !errors.Is(err, services.ErrCloud) {
		t.Fatalf("expected cloud error, got %v", err)
	}
	if _, err := cloud.NewRoleProvisioner(stub, nil).Ensure(context.Background(), "  "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty name, got %v", err)
	}
}

type stubSTS struct{}

func (stubSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/dev"),
		UserId:  aws.String("AIDA"),
	}, nil
}

func TestIdentifyAndDefaultBucket(t *testing.T) {
	caller, err := cloud.Identify(context.Background(), stubSTS{})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if caller.Account != "123456789012" {
		t.Fatalf("unexpected account %q", caller.Account)
	}
	if got := cloud.DefaultBucket("us-west-2", caller.Account); got != "sagemaker-us-west-2-123456789012" {
		t.Fatalf("unexpected bucket %q", got)
	}
}

type stubBuckets struct {
	headErr error
	created *s3.CreateBucketInput
}

func (s *stubBuckets) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if s.headErr != nil {
		return nil, s.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (s *stubBuckets) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	s.created = in
	return &s3.CreateBucketOutput{}, nil
}

type stubUploader struct {
	bucket, key string
	body        []byte
}

func (s *stubUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	s.bucket = aws.ToString(in.Bucket)
	s.key = aws.ToString(in.Key)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.body = data
	return &manager.UploadOutput{}, nil
}

func TestStorageEnsureBucket(t *testing.T) {
	existing := &stubBuckets{}
	created, err := cloud.NewStorage(existing, nil, "us-west-2", nil).EnsureBucket(context.Background(), "b")
	if err != nil || created || existing.created != nil {
		t.Fatalf("expected existing bucket to be reused, created=%v err=%v", created, err)
	}

	missing := &stubBuckets{headErr: &s3types.NotFound{}}
	created, err = cloud.NewStorage(missing, nil, "us-west-2", nil).EnsureBucket(context.Background(), "b")
	if err != nil || !created {
		t.Fatalf("expected bucket creation, created=%v err=%v", created, err)
	}
	if missing.created.CreateBucketConfiguration == nil ||
		missing.created.CreateBucketConfiguration.LocationConstraint != s3types.BucketLocationConstraint("us-west-2") {
		t.Fatal("expected location constraint for us-west-2")
	}

	east := &stubBuckets{headErr: &smithy.GenericAPIError{Code: "NotFound"}}
	if _, err := cloud.NewStorage(east, nil, "us-east-1", nil).EnsureBucket(context.Background(), "b"); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	if east.created == nil || east.created.CreateBucketConfiguration != nil {
		t.Fatal("us-east-1 buckets must be created without a location constraint")
	}

	denied := &stubBuckets{headErr: &smithy.GenericAPIError{Code: "Forbidden"}}
	if _, err := cloud.NewStorage(denied, nil, "us-east-1", nil).EnsureBucket(context.Background(), "b"); !errors.Is(err, services.ErrCloud) {
		t.Fatalf("expected cloud error, got %v", err)
	}
}

func TestStorageUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.tar.gz")
	testsupport.WriteBytes(t, path, []byte("archive"))
	uploader := &stubUploader{}

	url, err := cloud.NewStorage(&stubBuckets{}, uploader, "us-east-1", nil).Upload(context.Background(), path, "bucket", "nemo-parakeet/model.tar.gz")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "s3://bucket/nemo-parakeet/model.tar.gz" {
		t.Fatalf("unexpected url %q", url)
	}
	if uploader.bucket != "bucket" || uploader.key != "nemo-parakeet/model.tar.gz" || string(uploader.body) != "archive" {
		t.Fatalf("unexpected upload %+v", uploader)
	}

	if _, err := cloud.NewStorage(&stubBuckets{}, uploader, "", nil).Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), "b", "k"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type stubRuntime struct {
	in *sagemakerruntime.InvokeEndpointInput
}

func (s *stubRuntime) InvokeEndpoint(_ context.Context, in *sagemakerruntime.InvokeEndpointInput, _ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	s.in = in
	return &sagemakerruntime.InvokeEndpointOutput{ContentType: aws.String("application/json"), Body: []byte(`{"text":"hi"}`)}, nil
}

func TestInvokerSendsJSON(t *testing.T) {
	stub := &stubRuntime{}
	inv, err := cloud.NewInvoker(stub).Invoke(context.Background(), "nemo-parakeet-demo", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(inv.Body) != `{"text":"hi"}` || inv.InferenceID == "" {
		t.Fatalf("unexpected invocation %+v", inv)
	}
	if aws.ToString(stub.in.ContentType) != "application/json" || aws.ToString(stub.in.InferenceId) != inv.InferenceID {
		t.Fatalf("unexpected request %+v", stub.in)
	}
}

func TestNameFromBase(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 89*int(time.Millisecond), time.UTC)
	if got := cloud.NameFromBase("nemo-parakeet", now); got != "nemo-parakeet-2026-03-04-05-06-07-089" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := cloud.NameFromBase("nemo_parakeet v2", now); got != "nemo-parakeet-v2-2026-03-04-05-06-07-089" {
		t.Fatalf("expected sanitized base, got %q", got)
	}
	long := cloud.NameFromBase(strings.Repeat("a", 80), now)
	if len(long) > 63 {
		t.Fatalf("name exceeds limit: %d", len(long))
	}
}
