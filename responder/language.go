package responder

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	language "cloud.google.com/go/language/apiv2"
	"cloud.google.com/go/language/apiv2/languagepb"
	"google.golang.org/api/option"
)

const DefaultLanguage = "en"

// LanguageDetector guesses the language of a message.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// CloudLanguageDetector reads the language code reported by the Cloud
// Natural Language API alongside document sentiment.
type CloudLanguageDetector struct {
	client *language.Client
}

// NewCloudLanguageDetector builds a client from base64 encoded service
// account credentials.
func NewCloudLanguageDetector(ctx context.Context, encodedCreds string) (*CloudLanguageDetector, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("failed to decode natural language credentials: %w", err)
	}
	client, err := language.NewClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create natural language client: %w", err)
	}
	return &CloudLanguageDetector{client: client}, nil
}

func (d *CloudLanguageDetector) DetectLanguage(ctx context.Context, text string) (string, error) {
	req := &languagepb.AnalyzeSentimentRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{
				Content: text,
			},
			Type: languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}
	resp, err := d.client.AnalyzeSentiment(ctx, req)
	if err != nil {
		return "", fmt.Errorf("analyze sentiment: %w", err)
	}
	return resp.GetLanguageCode(), nil
}

func (d *CloudLanguageDetector) Close() error {
	return d.client.Close()
}

// ResolveLanguage returns the declared language if any, otherwise asks the
// detector. Anything that goes wrong falls back to DefaultLanguage.
func ResolveLanguage(ctx context.Context, detector LanguageDetector, declared, text string, logger *slog.Logger) string {
	if declared = strings.TrimSpace(strings.ToLower(declared)); declared != "" {
		return declared
	}
	if detector == nil {
		return DefaultLanguage
	}
	code, err := detector.DetectLanguage(ctx, text)
	if err != nil {
		if logger != nil {
			logger.Warn("language detection failed", slog.String("error", err.Error()))
		}
		return DefaultLanguage
	}
	if code = strings.TrimSpace(strings.ToLower(code)); code == "" {
		return DefaultLanguage
	}
	return code
}
