package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/paymentops/ledgerchat/pkg/models"
)

// System prompts pin each agent to its structured output contract. All
// agents answer in JSON object mode so responses decode directly into the
// result types.
const (
	classifierSystemPrompt = `You classify user questions about a payment transaction ledger.
Decide whether answering requires querying the database ("sql") or can be
answered conversationally without data ("simple").
Respond with JSON: {"query_type": "sql"} or {"query_type": "simple"}.`

	sqlSystemPrompt = `You are a PostgreSQL expert answering questions about a transactions table.
Only reference the columns listed in the prompt. The timestamp column is stored
as text; cast it with ::timestamptz when comparing or ordering.
Respond with JSON: {"sql_query": "<the query>"}.`

	summarySystemPrompt = `You are a payments data analyst. Summarize the retrieved data for the user.
Respond with JSON: {"summary": string, "key_insights": [string], "recommendation": string or null, "transaction_status": "SUCCESSFUL" or "FAILED" or null}.`

	chartSystemPrompt = `You judge whether a SQL answer can be rendered as a bar chart. If it can,
supply a modified query returning label/value pairs suitable for charting.
Respond with JSON: {"chart_possible": bool, "modified_sql": string or null}.`

	compactorSystemPrompt = `You condense a finished question/answer exchange into one or two sentences
of conversational memory for future turns.
Respond with JSON: {"summary": string, "metadata": object}.`

	retrySystemPrompt = `You analyze a failed payment transaction's event history and advise whether
a retry is sensible.
Respond with JSON: {"summary": string, "key_insights": [string], "recommendation": string or null}.`
)

// OpenAIAgents implements every collaborator interface over the OpenAI chat
// completions API with JSON-object response format.
type OpenAIAgents struct {
	client openai.Client
	model  string
}

// NewOpenAIAgents creates the shared agent backend.
func NewOpenAIAgents(apiKey, model string) *OpenAIAgents {
	return &OpenAIAgents{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Classify implements Classifier.
func (a *OpenAIAgents) Classify(ctx context.Context, query string, history []Message) (*ClassificationResult, []Message, error) {
	var result ClassificationResult
	newHistory, err := a.completeJSON(ctx, "classification", classifierSystemPrompt, history, query, &result)
	if err != nil {
		return nil, nil, err
	}
	if result.QueryType != QueryTypeSimple && result.QueryType != QueryTypeSQL {
		return nil, nil, &Error{Agent: "classification", Err: fmt.Errorf("unexpected query_type %q", result.QueryType)}
	}
	return &result, newHistory, nil
}

// GenerateSQL implements SQLGenerator.
func (a *OpenAIAgents) GenerateSQL(ctx context.Context, prompt string, history []Message) (*models.SQLGenerationResult, []Message, error) {
	var result models.SQLGenerationResult
	newHistory, err := a.completeJSON(ctx, "sql generation", sqlSystemPrompt, history, prompt, &result)
	if err != nil {
		return nil, nil, err
	}
	if result.SQLQuery == "" {
		return nil, nil, &Error{Agent: "sql generation", Err: fmt.Errorf("empty sql_query in response")}
	}
	return &result, newHistory, nil
}

// Summarize implements Summarizer.
func (a *OpenAIAgents) Summarize(ctx context.Context, dataContext string, history []Message) (*models.DataSummary, []Message, error) {
	var result models.DataSummary
	newHistory, err := a.completeJSON(ctx, "summary", summarySystemPrompt, history, dataContext, &result)
	if err != nil {
		return nil, nil, err
	}
	return &result, newHistory, nil
}

// AnalyzeChart implements ChartAnalyst.
func (a *OpenAIAgents) AnalyzeChart(ctx context.Context, chartContext string) (*ChartDecision, error) {
	var result ChartDecision
	if _, err := a.completeJSON(ctx, "bar chart", chartSystemPrompt, nil, chartContext, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Compact implements ResponseCompactor.
func (a *OpenAIAgents) Compact(ctx context.Context, responseContext string) (*CompactionResult, error) {
	var result CompactionResult
	if _, err := a.completeJSON(ctx, "response summary", compactorSystemPrompt, nil, responseContext, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeFailure implements RetryAnalyst.
func (a *OpenAIAgents) AnalyzeFailure(ctx context.Context, failureContext string) (*models.RetryAnalysis, error) {
	var result models.RetryAnalysis
	if _, err := a.completeJSON(ctx, "failed transaction retry", retrySystemPrompt, nil, failureContext, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// completeJSON sends system + history + user to the chat completions API in
// JSON-object mode and decodes the reply into out. It returns the new
// conversation history (history + user turn + assistant reply) for callers
// that thread continuity.
func (a *OpenAIAgents) completeJSON(ctx context.Context, agentName, systemPrompt string, history []Message, userPrompt string, out any) ([]Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: buildMessageParams(systemPrompt, history, userPrompt),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.1),
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &Error{Agent: agentName, Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &Error{Agent: agentName, Err: fmt.Errorf("no response choices returned")}
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, &Error{Agent: agentName, Err: fmt.Errorf("empty response content")}
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return nil, &Error{Agent: agentName, Err: fmt.Errorf("malformed structured response: %w", err)}
	}

	newHistory := make([]Message, 0, len(history)+2)
	newHistory = append(newHistory, history...)
	newHistory = append(newHistory,
		Message{Role: RoleUser, Content: userPrompt},
		Message{Role: RoleAssistant, Content: content},
	)
	return newHistory, nil
}

func buildMessageParams(systemPrompt string, history []Message, userPrompt string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(systemPrompt))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(userPrompt))
	return msgs
}
