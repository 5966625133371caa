// Package sequence generates and personalizes campaign email sequences
// with the configured language model provider.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/llm"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
	"github.com/salestroopz/outreach-engine/internal/service/campaign"
)

// DefaultNumSteps is how many steps a generation run asks for.
const DefaultNumSteps = 4

// Generator drives the campaign step generation lifecycle. Exactly one
// run per campaign can be in flight; the repository's generating guard
// rejects concurrent triggers.
type Generator struct {
	repo     campaign.Repository
	client   llm.Client
	numSteps int
}

// NewGenerator creates a step generator. A nil client is allowed and
// makes every run finish as failed_config.
func NewGenerator(repo campaign.Repository, client llm.Client) *Generator {
	return &Generator{repo: repo, client: client, numSteps: DefaultNumSteps}
}

// GenerateSteps runs one generation for the campaign and returns the
// terminal ai_status it recorded. numSteps <= 0 asks for the default
// sequence length. Returns campaign.ErrAlreadyGenerating without
// touching anything when a run is already in flight.
func (g *Generator) GenerateSteps(ctx context.Context, orgID, campaignID string, numSteps int) (domain.AIStatus, error) {
	if numSteps <= 0 {
		numSteps = g.numSteps
	}

	c, err := g.repo.Get(ctx, orgID, campaignID)
	if err != nil {
		return "", err
	}

	if err := g.repo.BeginGeneration(ctx, orgID, campaignID); err != nil {
		return "", err
	}

	status, genErr := g.generate(ctx, c, numSteps)
	if err := g.repo.FinishGeneration(ctx, orgID, campaignID, status); err != nil {
		logger.Error("record generation status", "campaign_id", campaignID, "error", err.Error())
	}

	logger.Info("step generation finished",
		"campaign_id", campaignID, "ai_status", string(status))
	return status, genErr
}

func (g *Generator) generate(ctx context.Context, c *domain.Campaign, numSteps int) (domain.AIStatus, error) {
	if g.client == nil {
		return domain.AIStatusFailedConfig, llm.ErrNotConfigured
	}

	raw, err := g.client.Complete(ctx, llm.Request{
		System:       generateSystemPrompt,
		Prompt:       buildGeneratePrompt(c, numSteps),
		Temperature:  0.7,
		JSONResponse: true,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return domain.AIStatusFailedConfig, err
		}
		return domain.AIStatusFailed, fmt.Errorf("llm completion: %w", err)
	}

	res, err := ParseSteps(raw)
	if err != nil {
		return domain.AIStatusFailedLLMEmpty, fmt.Errorf("parse steps: %w", err)
	}
	if len(res.Steps) == 0 {
		if res.Dropped > 0 {
			return domain.AIStatusFailed, fmt.Errorf("all %d generated steps invalid", res.Dropped)
		}
		return domain.AIStatusFailedLLMEmpty, fmt.Errorf("model returned no steps")
	}

	if _, err := g.repo.ReplaceSteps(ctx, c.ID, res.Steps); err != nil {
		return domain.AIStatusFailed, fmt.Errorf("store steps: %w", err)
	}

	if res.Dropped > 0 {
		logger.Warn("generation kept partial sequence",
			"campaign_id", c.ID, "kept", len(res.Steps), "dropped", res.Dropped)
		return domain.AIStatusCompletedPartial, nil
	}
	return domain.AIStatusCompleted, nil
}
