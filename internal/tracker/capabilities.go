package tracker

import (
	"context"
	"time"
)

// Comment is one remark left on an item.
type Comment struct {
	Author  string
	Text    string
	Created time.Time
}

// CommentLister is implemented by adapters whose backend exposes item
// comments.
type CommentLister interface {
	ListComments(ctx context.Context, item *Item) ([]Comment, error)
}

// RemoteBranchCleaner is implemented by adapters that can remove a merged
// branch's remote ref. Finish calls it best-effort after a successful merge.
type RemoteBranchCleaner interface {
	CleanupRemoteBranch(ctx context.Context, branch string) error
}

// ReviewTransitioner is implemented by adapters that may apply a status
// transition selected during pull-request creation.
type ReviewTransitioner interface {
	CompleteReview(ctx context.Context, item *Item) error
}

// TaskTransitioner is implemented by adapters whose tasks move through an
// intermediate in-progress state rather than a boolean checkbox.
type TaskTransitioner interface {
	SetTaskPhase(ctx context.Context, item *Item, task *Task, phase Phase) error
}
