package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/agentoutput"
	"github.com/brightlane/insightforge/ent/refinemessage"
	"github.com/brightlane/insightforge/pkg/llmprovider"
	"github.com/brightlane/insightforge/pkg/orchestrator"
	"github.com/brightlane/insightforge/pkg/promptstore"
)

const (
	refineMaxTokens   = 1024
	refineCallTimeout = 30 * time.Second
	refineHistoryCap  = 20
)

// RefineRunner composes and issues the single completion call a refinement
// turn needs: a fixed system prompt, the analysis' reviewer output as
// grounding context, the recent conversation history, and the new user
// message. Unlike the orchestrator, refinement never fans out — it is
// always exactly one model call.
type RefineRunner struct {
	client   *ent.Client
	provider llmprovider.CompletionProvider
	prompts  *promptstore.Store
	model    string
}

// NewRefineRunner builds a runner backed by the given provider, prompt
// store, and default model.
func NewRefineRunner(client *ent.Client, provider llmprovider.CompletionProvider, prompts *promptstore.Store, model string) *RefineRunner {
	return &RefineRunner{client: client, provider: provider, prompts: prompts, model: model}
}

// Run loads the analysis' reviewer output as grounding, folds in up to the
// last refineHistoryCap messages of prior conversation, and issues the
// completion call. The caller is responsible for quota checks before
// calling Run and for persisting the resulting exchange afterward via
// RefineService.
func (r *RefineRunner) Run(ctx context.Context, a *ent.Analysis, history []*ent.RefineMessage, newMessage string) (*llmprovider.Completion, error) {
	reviewerOutput := ""
	reviewer, err := r.client.AgentOutput.Query().
		Where(agentoutput.AnalysisIDEQ(a.ID), agentoutput.AgentNameEQ("reviewer")).
		Only(ctx)
	if err == nil {
		reviewerOutput = reviewer.OutputText
	}

	systemPrompt, err := r.prompts.Render("refine", promptstore.Variables{
		BusinessType:     string(a.BusinessType),
		Depth:            string(a.Depth),
		DepthDescription: orchestrator.DepthDescription(string(a.Depth)),
	})
	if err != nil {
		return nil, fmt.Errorf("refine: render system prompt: %w", err)
	}

	userMessage := buildRefineUserMessage(a.ProblemDescription, reviewerOutput, history, newMessage)

	deadline := time.Now().Add(refineCallTimeout)
	completion, err := r.provider.Complete(ctx, systemPrompt, userMessage, r.model, refineMaxTokens, deadline)
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// buildRefineUserMessage assembles the grounding context, trimmed history,
// and new message into the single user turn the completion provider sees.
func buildRefineUserMessage(problem, reviewerOutput string, history []*ent.RefineMessage, newMessage string) string {
	var b strings.Builder
	b.WriteString("Original problem:\n")
	b.WriteString(problem)
	b.WriteString("\n\nCompleted analysis (executive summary):\n")
	if reviewerOutput == "" {
		b.WriteString("[unavailable]")
	} else {
		b.WriteString(reviewerOutput)
	}

	if len(history) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		start := 0
		if len(history) > refineHistoryCap {
			start = len(history) - refineHistoryCap
		}
		for _, m := range history[start:] {
			role := "Client"
			if m.Role == refinemessage.RoleAssistant {
				role = "Analyst"
			}
			b.WriteString(role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nNew client message:\n")
	b.WriteString(newMessage)
	return b.String()
}
