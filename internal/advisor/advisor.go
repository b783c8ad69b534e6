// Package advisor turns signal reports into short plain-language
// explanations, through an LLM when a key is configured and through a
// deterministic template otherwise.
package advisor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type Advisor struct {
	tracer trace.Tracer
	llm    LLMClient
	model  string
}

// New builds an advisor. A nil llm is valid and selects the template
// fallback for every request.
func New(tracer trace.Tracer, llm LLMClient, model string) *Advisor {
	return &Advisor{tracer: tracer, llm: llm, model: model}
}

// Explain renders a one-paragraph explanation of the report. LLM
// failures degrade to the template, never to an error: the bot always
// has something to say.
func (a *Advisor) Explain(ctx context.Context, report domain.SignalReport) string {
	ctx, span := a.tracer.Start(ctx, "advisor.explain")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", report.Symbol))

	if a.llm == nil {
		return templateExplanation(report)
	}

	reply, err := a.callLLM(ctx, report)
	if err != nil {
		span.RecordError(err)
		log.Printf("advisor LLM call failed, using template: %v", err)
		return templateExplanation(report)
	}
	return reply
}

func (a *Advisor) callLLM(ctx context.Context, report domain.SignalReport) (string, error) {
	ctx, span := a.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", a.model))

	completion, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(report)),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return completion.Choices[0].Message.Content, nil
}

const systemPrompt = "You are a concise equity analyst. Explain the given " +
	"technical signal in one short paragraph for a retail investor. Do not " +
	"give financial advice or price targets."

// BuildPrompt flattens a signal report into the user message.
func BuildPrompt(report domain.SignalReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s\nSignal: %s\nScore: %.1f/100\nReason: %s\n",
		report.Symbol, report.Signal, report.Score, report.Reason)
	if len(report.Details) > 0 {
		sb.WriteString("Observations:\n")
		for _, d := range report.Details {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}
	return sb.String()
}

// templateExplanation is the deterministic fallback.
func templateExplanation(report domain.SignalReport) string {
	action := map[domain.Signal]string{
		domain.SignalStrongBuy:  "looks strongly constructive",
		domain.SignalBuy:        "looks constructive",
		domain.SignalHold:       "is neutral",
		domain.SignalSell:       "looks weak",
		domain.SignalStrongSell: "looks very weak",
	}[report.Signal]
	if action == "" {
		action = "is unclear"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s with a composite score of %.1f/100 (%s).",
		report.Symbol, action, report.Score, report.Reason)
	if len(report.Details) > 0 {
		fmt.Fprintf(&sb, " Supporting observations: %s.", strings.Join(report.Details, "; "))
	}
	return sb.String()
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
