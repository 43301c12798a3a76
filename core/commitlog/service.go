package commitlog

import (
	"context"
	"strconv"
	"time"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
)

const defaultPageSize = 50

// Page is one page of log entries, newest first. Cursor is empty on the last page.
type Page struct {
	Entries []Entry `json:"results"`
	Cursor  string  `json:"cursor"`
	More    bool    `json:"more"`
}

type Service struct {
	repo     Repository
	maxLimit int
}

func NewService(repo Repository, conf *core.Config) *Service {
	limit := conf.DefaultQueryLimit
	if limit <= 0 {
		limit = 1000
	}
	return &Service{repo: repo, maxLimit: limit}
}

// GetCommit returns the log entry of version of an activity.
func (svc *Service) GetCommit(ctx context.Context, t activity.Type, activityID string, version int) (Entry, error) {
	return svc.repo.Get(ctx, EntryID(t, activityID, version))
}

// GetLatestCommit returns the last content commit of an activity, its deletion included.
func (svc *Service) GetLatestCommit(ctx context.Context, ref activity.Ref) (Entry, error) {
	entries, err := svc.repo.Query(ctx, QueryFilter{Ref: ref, ContentOnly: true, Limit: 1})
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	return entries[0], nil
}

// QueryAllCommits pages over every logged commit.
func (svc *Service) QueryAllCommits(ctx context.Context, pageSize int, cursor string) (Page, error) {
	return svc.query(ctx, QueryFilter{}, pageSize, cursor)
}

// QueryNonPrivateCommits pages over commits left public, not older than maxAge (0 means any age).
func (svc *Service) QueryNonPrivateCommits(ctx context.Context, pageSize int, cursor string, maxAge time.Duration) (Page, error) {
	if maxAge < 0 {
		return Page{}, core.NewValidationErrorf("max_age must be non-negative: %s", maxAge)
	}
	filter := QueryFilter{NonPrivateOnly: true}
	if maxAge > 0 {
		filter.Since = core.NowFunc().Add(-maxAge)
	}
	return svc.query(ctx, filter, pageSize, cursor)
}

func (svc *Service) query(ctx context.Context, filter QueryFilter, pageSize int, cursor string) (Page, error) {
	offset, err := parseCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > svc.maxLimit {
		pageSize = svc.maxLimit
	}

	// fetch one extra entry to know whether there is a next page
	filter.Offset = offset
	filter.Limit = pageSize + 1
	entries, err := svc.repo.Query(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	page := Page{Entries: entries}
	if len(entries) > pageSize {
		page.Entries = entries[:pageSize]
		page.More = true
		page.Cursor = strconv.Itoa(offset + pageSize)
	}
	if page.Entries == nil {
		page.Entries = []Entry{}
	}
	return page, nil
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, core.NewValidationErrorf("Invalid cursor: %s", cursor)
	}
	return offset, nil
}
