package translation

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/translate"
	"github.com/aws/aws-sdk-go/service/translate/translateiface"
)

// AWSTranslator translates caption text with Amazon Translate
type AWSTranslator struct {
	client translateiface.TranslateAPI
}

// NewAWSTranslator creates a translator backed by the given Translate client
func NewAWSTranslator(client translateiface.TranslateAPI) *AWSTranslator {
	return &AWSTranslator{client: client}
}

// Translate sends text in one request. Line breaks are passed through
// unchanged; callers verify the line count of the reply.
func (t *AWSTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, err := t.client.TextWithContext(ctx, &translate.TextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(sourceLang),
		TargetLanguageCode: aws.String(targetLang),
	})
	if err != nil {
		return "", fmt.Errorf("translate %s -> %s: %w", sourceLang, targetLang, err)
	}

	translated := aws.StringValue(out.TranslatedText)
	log.Printf("Translated %d bytes %s -> %s", len(text), sourceLang, targetLang)
	return translated, nil
}
