// Package bedrock adapts Amazon Titan text-embedding models on AWS Bedrock
// to the llm.Embedder interface.
package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/efebarandurmaz/llmfactory/internal/llm"
)

const (
	DefaultDimensions = 1024
	DefaultNormalize  = true

	contentTypeJSON = "application/json"
)

// ModelInvoker is the slice of the Bedrock runtime client the adapter needs.
// *bedrockruntime.Client satisfies it.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// InvocationError wraps a failed InvokeModel call: network, credentials,
// throttling, or a model id the region does not serve.
type InvocationError struct {
	ModelID string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("bedrock: invoke %s: %v", e.ModelID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ResponseError reports a reply body that is not JSON or has no embedding.
type ResponseError struct {
	ModelID string
	Body    []byte
	Err     error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("bedrock: response from %s: %v", e.ModelID, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Is makes a ResponseError match llm.ErrMalformedResponse.
func (e *ResponseError) Is(target error) bool { return target == llm.ErrMalformedResponse }

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           *[]float64 `json:"embedding"`
	InputTextTokenCount int        `json:"inputTextTokenCount,omitempty"`
}

// EncodeTitanRequest builds the Titan request body.
func EncodeTitanRequest(text string, dimensions int, normalize bool) ([]byte, error) {
	return json.Marshal(titanRequest{InputText: text, Dimensions: dimensions, Normalize: normalize})
}

// DecodeTitanResponse extracts the embedding vector from a Titan reply.
func DecodeTitanResponse(body []byte) ([]float64, error) {
	var resp titanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ResponseError{Body: body, Err: fmt.Errorf("decode body: %w", err)}
	}
	if resp.Embedding == nil {
		return nil, &ResponseError{Body: body, Err: fmt.Errorf("body has no embedding field")}
	}
	return *resp.Embedding, nil
}

// TitanEmbedder calls a Titan embedding model through InvokeModel.
type TitanEmbedder struct {
	invoker    ModelInvoker
	Dimensions int
	Normalize  bool
}

// NewTitanEmbedder returns an embedder with 1024 dimensions and normalization on.
func NewTitanEmbedder(invoker ModelInvoker) *TitanEmbedder {
	return &TitanEmbedder{
		invoker:    invoker,
		Dimensions: DefaultDimensions,
		Normalize:  DefaultNormalize,
	}
}

// Embed implements llm.Embedder using the embedder's Dimensions and Normalize.
func (e *TitanEmbedder) Embed(ctx context.Context, text, model string) ([]float64, error) {
	return e.EmbedWith(ctx, text, model, e.Dimensions, e.Normalize)
}

// EmbedWith embeds text with explicit output size and normalization.
func (e *TitanEmbedder) EmbedWith(ctx context.Context, text, model string, dimensions int, normalize bool) ([]float64, error) {
	body, err := EncodeTitanRequest(text, dimensions, normalize)
	if err != nil {
		return nil, err
	}

	out, err := e.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        body,
		Accept:      aws.String(contentTypeJSON),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, &InvocationError{ModelID: model, Err: err}
	}

	vec, err := DecodeTitanResponse(bytes.TrimSpace(out.Body))
	if err != nil {
		if re, ok := err.(*ResponseError); ok {
			re.ModelID = model
		}
		return nil, err
	}
	return vec, nil
}
