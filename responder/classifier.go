// Package responder turns a citizen message into a first classification:
// category, severity and a few immediate instructions.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go-firstresponder/llm"
	"go-firstresponder/types"
)

const (
	UnknownCategory = "UNKNOWN"
	ErrorCategory   = "ERROR"

	unsureInstruction = "I'm not sure, please call 112."
	errorInstruction  = "We could not analyze your message. Call 112 immediately if you are in danger."
)

const classifyTemplate = `You are an emergency first-response assistant.
ALWAYS reply in EXACT JSON: {"category":"...","severity":"...","instructions":["...","..."]}
Severity must be one of CRITICAL, HIGH, MEDIUM, LOW, INFORMATIONAL.
Instructions must be short steps a single untrained person can follow.
Reply in the language with code %q.
User is at (lat:%g,lon:%g). Context feed: %s

User message: %q
`

// Classifier asks a generator for a classification and never fails.
type Classifier struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewClassifier(gen llm.Generator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, logger: logger}
}

type rawClassification struct {
	Category     string          `json:"category"`
	Severity     string          `json:"severity"`
	Instructions json.RawMessage `json:"instructions"`
}

// Classify maps a message to a classification. An unparsable answer yields
// an UNKNOWN/INFORMATIONAL result, a generator failure an ERROR/CRITICAL one.
func (c *Classifier) Classify(ctx context.Context, message string, lat, lon float64, feed, language string) types.Classification {
	if language == "" {
		language = DefaultLanguage
	}
	prompt := fmt.Sprintf(classifyTemplate, language, lat, lon, feed, message)

	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.logger.Error("classification generator failed", slog.String("error", err.Error()))
		return ErrorClassification()
	}

	cls, err := ParseClassification(raw)
	if err != nil {
		c.logger.Warn("classification output unparsable", slog.String("error", err.Error()))
		return UnknownClassification()
	}
	return cls
}

// ParseClassification decodes a model answer, tolerating code fences and a
// single string in place of the instruction list.
func ParseClassification(text string) (types.Classification, error) {
	payload := llm.ExtractJSON(text)
	if payload == "" {
		return types.Classification{}, fmt.Errorf("no json object in classification output")
	}
	var raw rawClassification
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return types.Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	category := strings.TrimSpace(raw.Category)
	if category == "" {
		return types.Classification{}, fmt.Errorf("classification has no category")
	}

	instructions, err := decodeInstructions(raw.Instructions)
	if err != nil {
		return types.Classification{}, err
	}
	return types.Classification{
		Category:     category,
		Severity:     types.NormalizeSeverity(raw.Severity),
		Instructions: instructions,
	}, nil
}

func decodeInstructions(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := list[:0]
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode instructions: %w", err)
	}
	if single = strings.TrimSpace(single); single == "" {
		return []string{}, nil
	}
	return []string{single}, nil
}

func UnknownClassification() types.Classification {
	return types.Classification{
		Category:     UnknownCategory,
		Severity:     types.Informational,
		Instructions: []string{unsureInstruction},
	}
}

func ErrorClassification() types.Classification {
	return types.Classification{
		Category:     ErrorCategory,
		Severity:     types.Critical,
		Instructions: []string{errorInstruction},
	}
}
