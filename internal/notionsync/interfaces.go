package notionsync

import (
	"context"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/jomei/notionapi"
)

// GoalPages is the page set of the goals database. GoalDatabase implements
// it on the Notion API.
type GoalPages interface {
	Pages(ctx context.Context) ([]notionapi.Page, error)
	Create(ctx context.Context, props notionapi.Properties) (string, error)
	Update(ctx context.Context, pageID string, props notionapi.Properties) error
	Archive(ctx context.Context, pageID string) error
}

// GoalSource lists the goals to export. store.GoalStore satisfies it.
type GoalSource interface {
	ListGoals(ctx context.Context, userID string) ([]domain.Goal, error)
}
