package notionsync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jomei/notionapi"
)

const queryPageSize = 100

// GoalDatabase is the Notion database goals are exported to.
type GoalDatabase struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
}

// NewGoalDatabase binds an integration token to one database. The database
// must be shared with the integration.
func NewGoalDatabase(token, databaseID string) *GoalDatabase {
	return &GoalDatabase{
		client:     notionapi.NewClient(notionapi.Token(token), notionapi.WithHTTPClient(&http.Client{Timeout: 30 * time.Second})),
		databaseID: notionapi.DatabaseID(databaseID),
	}
}

// Pages returns every page of the database, following the query cursor.
func (d *GoalDatabase) Pages(ctx context.Context) ([]notionapi.Page, error) {
	return collectPages(func(cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
		return d.client.Database.Query(ctx, d.databaseID, &notionapi.DatabaseQueryRequest{
			PageSize:    queryPageSize,
			StartCursor: cursor,
		})
	})
}

// Create adds a page and returns its id.
func (d *GoalDatabase) Create(ctx context.Context, props notionapi.Properties) (string, error) {
	page, err := d.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: d.databaseID,
		},
		Properties: props,
	})
	if err != nil {
		return "", fmt.Errorf("Create: %w", err)
	}
	return string(page.ID), nil
}

func (d *GoalDatabase) Update(ctx context.Context, pageID string, props notionapi.Properties) error {
	if _, err := d.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
		return fmt.Errorf("Update %s: %w", pageID, err)
	}
	return nil
}

// Archive moves a page to the trash; Notion has no hard delete.
func (d *GoalDatabase) Archive(ctx context.Context, pageID string) error {
	if _, err := d.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("Archive %s: %w", pageID, err)
	}
	return nil
}

func collectPages(query func(cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor
	for {
		resp, err := query(cursor)
		if err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

var _ GoalPages = (*GoalDatabase)(nil)
