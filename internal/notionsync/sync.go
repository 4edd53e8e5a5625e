// Package notionsync exports savings goals to a Notion database. Each goal
// maps to one page keyed by its "Goal ID" property; reruns update those
// pages in place and archive pages whose goal no longer exists.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// Result counts what a sync did. Failed pages are logged and counted but
// do not stop the run.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Syncer exports the goals of one user.
type Syncer struct {
	source GoalSource
	pages  GoalPages
	userID string
}

func NewSyncer(source GoalSource, pages GoalPages, userID string) *Syncer {
	return &Syncer{source: source, pages: pages, userID: userID}
}

// SyncGoals brings the Notion database in line with the stored goals.
// In dry-run mode it only logs what it would do.
func (s *Syncer) SyncGoals(ctx context.Context, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx).With().
		Str("user_id", s.userID).
		Bool("dry_run", dryRun).
		Logger()

	goals, err := s.source.ListGoals(ctx, s.userID)
	if err != nil {
		return Result{}, fmt.Errorf("SyncGoals: list goals: %w", err)
	}

	pages, err := s.pages.Pages(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("SyncGoals: %w", err)
	}
	log.Info().Int("goal_count", len(goals)).Int("notion_page_count", len(pages)).Msg("Starting goal sync to Notion")

	current := make(map[string]bool, len(goals))
	for _, g := range goals {
		current[g.ID] = true
	}

	pageByGoal := make(map[string]string, len(pages))
	var result Result
	for _, page := range pages {
		goalID := extractGoalID(page)
		if goalID != "" && current[goalID] {
			if _, dup := pageByGoal[goalID]; !dup {
				pageByGoal[goalID] = string(page.ID)
				continue
			}
		}

		// Stale, foreign or duplicate page.
		if dryRun {
			log.Info().Str("goal_id", goalID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive Notion page")
			result.Archived++
			continue
		}
		if err := s.pages.Archive(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("goal_id", goalID).Str("page_id", string(page.ID)).Msg("Failed to archive Notion page")
			result.Failed++
			continue
		}
		result.Archived++
	}

	for _, g := range goals {
		s.syncGoal(ctx, g, pageByGoal[g.ID], dryRun, &result)
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Msg("Goal sync completed")
	return result, nil
}

func (s *Syncer) syncGoal(ctx context.Context, g domain.Goal, pageID string, dryRun bool, result *Result) {
	log := logger.FromContext(ctx)

	if dryRun {
		if pageID != "" {
			log.Info().Str("goal_id", g.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
			result.Updated++
		} else {
			log.Info().Str("goal_id", g.ID).Msg("[DRY RUN] Would create Notion page")
			result.Created++
		}
		return
	}

	props := GoalToNotionProperties(g)
	if pageID != "" {
		if err := s.pages.Update(ctx, pageID, props); err != nil {
			log.Warn().Err(err).Str("goal_id", g.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
			result.Failed++
			return
		}
		result.Updated++
		return
	}

	newID, err := s.pages.Create(ctx, props)
	if err != nil {
		log.Warn().Err(err).Str("goal_id", g.ID).Msg("Failed to create Notion page")
		result.Failed++
		return
	}
	log.Debug().Str("goal_id", g.ID).Str("page_id", newID).Msg("Created Notion page")
	result.Created++
}
