package llm

import (
	"context"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

// VertexGemini is the Vertex AI backed provider. Frequency and presence
// penalties are not supported by the Gemini generation config and are
// ignored.
type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrCompletionFailed)
	}

	model := v.client.GenerativeModel(v.modelName)
	model.SetTemperature(float32(opts.Temperature))
	if opts.TopP > 0 {
		model.SetTopP(float32(opts.TopP))
	}
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	// Gemini has no system role on single-turn requests; prepend system
	// content to the prompt instead.
	var prompt strings.Builder
	for _, m := range messages {
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(m.Content)
	}
	parts := []vertexgenai.Part{vertexgenai.Text(prompt.String())}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty candidates", ErrCompletionFailed)
	}

	cand := resp.Candidates[0]
	var content strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(vertexgenai.Text); ok {
			content.WriteString(string(t))
		}
	}
	if content.Len() == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrCompletionFailed)
	}

	out := &Completion{
		Content:      content.String(),
		Model:        v.modelName,
		FinishReason: strings.ToLower(cand.FinishReason.String()),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
