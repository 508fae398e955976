// Package translator calls the machine-translation backends: Amazon
// Translate, or a translator Lambda speaking the chunked JSON protocol.
package translator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/pricofy/csv-translation/internal/domain"
)

// Translator translates a single string.
type Translator interface {
	Translate(ctx context.Context, text string, langs domain.Languages) (string, error)
}

// TranslateAPI is the subset of the Amazon Translate client used by AWS.
type TranslateAPI interface {
	TranslateText(ctx context.Context, params *translate.TranslateTextInput, optFns ...func(*translate.Options)) (*translate.TranslateTextOutput, error)
}

// AWS translates through Amazon Translate.
type AWS struct {
	client TranslateAPI
}

// NewAWS creates an Amazon Translate backend.
func NewAWS(client TranslateAPI) *AWS {
	return &AWS{client: client}
}

// Translate implements Translator.
func (a *AWS) Translate(ctx context.Context, text string, langs domain.Languages) (string, error) {
	out, err := a.client.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(langs.Source),
		TargetLanguageCode: aws.String(langs.Target),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s->%s: %w", domain.ErrTranslation, langs.Source, langs.Target, err)
	}
	return aws.ToString(out.TranslatedText), nil
}
