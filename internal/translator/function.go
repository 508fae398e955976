package translator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/pricofy/csv-translation/internal/domain"
)

// LambdaAPI is the subset of the Lambda client used by Function.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// FunctionRequest is the payload accepted by translator functions.
type FunctionRequest struct {
	Chunks     [][]string `json:"chunks"`
	SourceLang string     `json:"source_lang,omitempty"`
	TargetLang string     `json:"target_lang,omitempty"`
}

// FunctionResponse is the payload returned by translator functions.
type FunctionResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
}

// Function translates by invoking a translator Lambda synchronously.
type Function struct {
	client LambdaAPI
	name   string
}

// NewFunction creates a backend that invokes the function called name.
func NewFunction(client LambdaAPI, name string) *Function {
	return &Function{client: client, name: name}
}

// Translate implements Translator by sending text as a one-element chunk.
func (f *Function) Translate(ctx context.Context, text string, langs domain.Languages) (string, error) {
	out, err := f.TranslateChunks(ctx, [][]string{{text}}, langs)
	if err != nil {
		return "", err
	}
	if len(out) != 1 || len(out[0]) != 1 {
		return "", fmt.Errorf("%w: %s returned %d chunks for 1", domain.ErrTranslation, f.name, len(out))
	}
	return out[0][0], nil
}

// TranslateChunks sends all chunks in one invocation and returns the
// translations in the same shape.
func (f *Function) TranslateChunks(ctx context.Context, chunks [][]string, langs domain.Languages) ([][]string, error) {
	if len(chunks) == 0 {
		return [][]string{}, nil
	}

	payload, err := json.Marshal(FunctionRequest{
		Chunks:     chunks,
		SourceLang: langs.Source,
		TargetLang: langs.Target,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := f.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(f.name),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", domain.ErrTranslation, f.name, err)
	}
	if result.FunctionError != nil {
		return nil, fmt.Errorf("%w: lambda error: %s", domain.ErrTranslation, aws.ToString(result.FunctionError))
	}

	var resp FunctionResponse
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", domain.ErrTranslation, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: translator error: %s", domain.ErrTranslation, resp.Error)
	}
	if len(resp.Translations) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d chunks, got %d", domain.ErrTranslation, len(chunks), len(resp.Translations))
	}
	return resp.Translations, nil
}
