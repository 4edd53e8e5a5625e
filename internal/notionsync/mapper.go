package notionsync

import (
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/jomei/notionapi"
)

// Property names of the Notion goals database.
const (
	PropName          = "Name"
	PropGoalID        = "Goal ID"
	PropDescription   = "Description"
	PropTargetAmount  = "Target Amount"
	PropCurrentAmount = "Current Amount"
	PropMonthlyTarget = "Monthly Target"
	PropProgress      = "Progress"
	PropTargetDate    = "Target Date"
	PropCategory      = "Category"
	PropPriority      = "Priority"
	PropCompleted     = "Completed"
)

// GoalToNotionProperties converts a goal to the properties of its Notion page.
// The goal id is kept in a rich-text property so reruns find the page again.
func GoalToNotionProperties(g domain.Goal) notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(g.Name),
		},
		PropGoalID: notionapi.RichTextProperty{
			RichText: richText(g.ID),
		},
		PropTargetAmount: notionapi.NumberProperty{
			Number: g.TargetAmount.InexactFloat64(),
		},
		PropCurrentAmount: notionapi.NumberProperty{
			Number: g.CurrentAmount.InexactFloat64(),
		},
		PropMonthlyTarget: notionapi.NumberProperty{
			Number: g.MonthlyTarget.InexactFloat64(),
		},
		PropProgress: notionapi.NumberProperty{
			Number: stats.RoundPercent(stats.PercentageOf(g.CurrentAmount, g.TargetAmount)).InexactFloat64(),
		},
		PropTargetDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: dateOf(g.TargetDate)},
		},
		PropCompleted: notionapi.CheckboxProperty{
			Checkbox: g.Completed,
		},
	}

	if g.Description != "" {
		props[PropDescription] = notionapi.RichTextProperty{
			RichText: richText(g.Description),
		}
	}
	if g.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: g.Category},
		}
	}
	if g.Priority != "" {
		props[PropPriority] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(g.Priority)},
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func dateOf(t time.Time) *notionapi.Date {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}

// extractGoalID returns the goal id stored on a page, or "" when the page
// was not created by the export.
func extractGoalID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropGoalID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
