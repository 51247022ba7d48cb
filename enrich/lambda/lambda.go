// Package lambda invokes AWS Lambda functions synchronously.
package lambda

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/sevigo/ragbench/enrich"
)

var ErrFunction = errors.New("lambda: function returned an error")

// Client is the subset of *lambda.Client used by Invoker.
type Client interface {
	Invoke(ctx context.Context, params *awslambda.InvokeInput, optFns ...func(*awslambda.Options)) (*awslambda.InvokeOutput, error)
}

var _ Client = (*awslambda.Client)(nil)

// Invoker implements enrich.Invoker with RequestResponse invocations.
type Invoker struct {
	client Client
}

var _ enrich.Invoker = (*Invoker)(nil)

func New(client Client) *Invoker {
	return &Invoker{client: client}
}

// NewFromConfig builds an Invoker from a loaded AWS configuration.
func NewFromConfig(cfg aws.Config) *Invoker {
	return New(awslambda.NewFromConfig(cfg))
}

func (i *Invoker) Invoke(ctx context.Context, functionName string, payload []byte) ([]byte, error) {
	out, err := i.client.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(functionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("lambda: invoke %s: %w", functionName, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrFunction, aws.ToString(out.FunctionError), string(out.Payload))
	}
	if out.StatusCode >= 300 {
		return nil, fmt.Errorf("lambda: invoke %s: unexpected status %d", functionName, out.StatusCode)
	}
	return out.Payload, nil
}
