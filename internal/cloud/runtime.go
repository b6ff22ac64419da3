package cloud

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/google/uuid"

	"nemoship/internal/services"
)

// RuntimeAPI is the subset of the SageMaker runtime client used to invoke endpoints.
type RuntimeAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Invocation is the raw result of an endpoint call.
type Invocation struct {
	InferenceID string
	ContentType string
	Body        []byte
}

// Invoker sends JSON payloads to a deployed endpoint.
type Invoker struct {
	client RuntimeAPI
}

// NewInvoker wires an invoker to a runtime client.
func NewInvoker(client RuntimeAPI) *Invoker {
	return &Invoker{client: client}
}

// Invoke posts body to endpoint as application/json.
func (i *Invoker) Invoke(ctx context.Context, endpoint string, body []byte) (Invocation, error) {
	id := uuid.NewString()
	out, err := i.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpoint),
		Body:         body,
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
		InferenceId:  aws.String(id),
	})
	if err != nil {
		return Invocation{InferenceID: id}, services.Wrap(services.ErrCloud, "invoke", "invoke endpoint", endpoint, err)
	}
	return Invocation{
		InferenceID: id,
		ContentType: aws.ToString(out.ContentType),
		Body:        out.Body,
	}, nil
}
