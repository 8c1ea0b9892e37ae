package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/critpath/internal/graph"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// TaskSummary is the minimal task info sent to Claude for dependency inference.
type TaskSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

// DepEdge is a single inferred DEPENDS_ON edge.
type DepEdge struct {
	From   string `json:"from"` // task that waits
	To     string `json:"to"`   // task that must finish first
	Reason string `json:"reason"`
}

// InferDepsResult holds the full response from Claude.
type InferDepsResult struct {
	Edges   []DepEdge `json:"edges"`
	Summary string    `json:"summary"`
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a Claude client. apiKey defaults to ANTHROPIC_API_KEY env.
// Extra request options (base URL, HTTP client) are passed through to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	m := anthropic.Model(DefaultModel)
	if model != "" {
		m = anthropic.Model(model)
	}
	return &Client{inner: inner, model: m}, nil
}

// Summaries converts the graph's tasks into prompt input, sorted by id.
func Summaries(g *graph.Graph) []TaskSummary {
	tasks := g.Tasks()
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskSummary{ID: t.ID, Name: t.Name, Duration: t.Duration})
	}
	return out
}

const inferDepsPrompt = `You are an expert project planner. Given a list of project tasks with durations in days, infer the dependency edges between them.

Rules:
- Only add a dependency when there is a strong causal reason (task A cannot start until task B is complete).
- Prefer fewer edges. Do not add transitive or speculative dependencies.
- Do not create cycles.
- Only use task IDs from the provided list.
- A task cannot depend on itself.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"from": "<task that waits>", "to": "<task that must finish first>", "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the tasks:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(tasks []TaskSummary) (string, error) {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps calls the Claude API to infer task dependencies.
func (c *Client) InferDeps(ctx context.Context, tasks []TaskSummary) (*InferDepsResult, error) {
	prompt, err := buildPrompt(tasks)
	if err != nil {
		return nil, err
	}
	text, err := c.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}
	return parseInferDeps(text)
}

// parseInferDeps reads the model's reply. Edges may use from/to or the
// blocked_id/blocker_id naming; edges missing either end are dropped.
func parseInferDeps(text string) (*InferDepsResult, error) {
	text = stripJSONFences(text)
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("parse claude response: invalid JSON\nraw: %s", text)
	}

	doc := gjson.Parse(text)
	result := &InferDepsResult{Summary: doc.Get("summary").String()}

	edges := doc.Get("edges")
	if !edges.Exists() {
		edges = doc.Get("dependencies")
	}
	edges.ForEach(func(_, e gjson.Result) bool {
		from := firstString(e, "from", "blocked_id", "task")
		to := firstString(e, "to", "blocker_id", "depends_on")
		if from != "" && to != "" {
			result.Edges = append(result.Edges, DepEdge{From: from, To: to, Reason: e.Get("reason").String()})
		}
		return true
	})
	return result, nil
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

const summariseAnalysisPrompt = `You are a technical project manager explaining a critical path analysis.

You will receive a JSON report with the project's tasks, dependencies, critical path, ranked paths and schedule (earliest/latest start and finish, slack).

Produce a concise narrative covering:
- Which chain of tasks determines the project duration and why.
- Which tasks have slack and how much they could slip.
- Any risk worth flagging (e.g. several paths tied or near the critical duration).

Keep it to a few short paragraphs. Do not repeat the JSON verbatim.
`

// SummariseAnalysis sends a JSON analysis report to Claude and returns a
// human-readable explanation of it.
func (c *Client) SummariseAnalysis(ctx context.Context, report []byte) (string, error) {
	text, err := c.complete(ctx, summariseAnalysisPrompt, "## Analysis Report\n\n```json\n"+string(report)+"\n```\n")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(4096),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
