package service

import (
	"context"
	"iter"
	"time"

	"cloudysky/internal/models"
	"cloudysky/internal/observability"
	"cloudysky/internal/repository"
	"cloudysky/internal/visibility"
)

// DumpDateLayout formats post dates in the diagnostic dump.
const DumpDateLayout = "2006-01-02 15:04"

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// Page is a limit/offset window over the newest-first post list.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultFeedLimit
	}
	if p.Limit > maxFeedLimit {
		p.Limit = maxFeedLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CommentView is a comment as disclosed inside a visible post.
type CommentView struct {
	ID        uint             `json:"id"`
	AuthorID  uint             `json:"author_id"`
	Author    string           `json:"author"`
	CreatedAt time.Time        `json:"created_at"`
	Content   string           `json:"content"`
	IsHidden  bool             `json:"is_hidden"`
	Redacted  bool             `json:"redacted"`
	Class     visibility.Class `json:"class"`
}

// PostView is a post as disclosed to one viewer.
type PostView struct {
	ID        uint             `json:"id"`
	AuthorID  uint             `json:"author_id"`
	Author    string           `json:"author"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	IsHidden  bool             `json:"is_hidden"`
	Class     visibility.Class `json:"class"`
	Comments  []CommentView    `json:"comments"`
	Media     []string         `json:"media,omitempty"`
}

// DumpRecord is one post of the diagnostic dump.
type DumpRecord struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Date     string `json:"date"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Comments []uint `json:"comments"`
}

// FeedService assembles read projections. Every item passes through the
// visibility package before it is disclosed.
type FeedService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	mediaRepo   repository.MediaRepository
}

func NewFeedService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	mediaRepo repository.MediaRepository,
) *FeedService {
	return &FeedService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		mediaRepo:   mediaRepo,
	}
}

type feedPage struct {
	posts    []*models.Post
	comments map[uint][]*models.Comment
}

func (s *FeedService) fetch(ctx context.Context, limit, offset int) (*feedPage, error) {
	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	comments, err := s.commentRepo.ListByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &feedPage{posts: posts, comments: comments}, nil
}

// ListFeed returns one page of the UI feed, newest first. Hidden posts the
// viewer may not see are left out, so a page can hold fewer than Limit
// items. Anonymous viewers get an empty sequence.
func (s *FeedService) ListFeed(ctx context.Context, viewer models.Viewer, page Page) (iter.Seq[PostView], error) {
	defer observability.TrackFeed("listing")()
	span, ctx := observability.NewSpan(ctx, "feed.listing", observability.ViewerAttributes(viewer)...)
	defer span.End()

	if !viewer.Authenticated {
		return emptySeq[PostView](), nil
	}

	page = page.normalized()
	fetched, err := s.fetch(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}

	return func(yield func(PostView) bool) {
		for _, p := range fetched.posts {
			decision, ok := visibility.ForListing(viewer, visibility.PostItem(p), visibility.Previewed)
			if !ok {
				continue
			}
			view := postView(p, decision)
			view.Comments = nestedComments(viewer, fetched.comments[p.ID], visibility.Previewed)
			if !yield(view) {
				return
			}
		}
	}, nil
}

// DumpFeed returns every post the viewer may see, newest first, with full
// content and the ids of all its comments in ascending order.
func (s *FeedService) DumpFeed(ctx context.Context, viewer models.Viewer) (iter.Seq[DumpRecord], error) {
	defer observability.TrackFeed("dump")()
	span, ctx := observability.NewSpan(ctx, "feed.dump", observability.ViewerAttributes(viewer)...)
	defer span.End()

	if !viewer.Authenticated {
		return emptySeq[DumpRecord](), nil
	}

	fetched, err := s.fetch(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	return func(yield func(DumpRecord) bool) {
		for _, p := range fetched.posts {
			decision, ok := visibility.ForListing(viewer, visibility.PostItem(p), visibility.Full)
			if !ok {
				continue
			}
			comments := fetched.comments[p.ID]
			ids := make([]uint, 0, len(comments))
			for _, c := range comments {
				ids = append(ids, c.ID)
			}
			record := DumpRecord{
				ID:       p.ID,
				Username: p.Author.Username,
				Date:     p.CreatedAt.UTC().Format(DumpDateLayout),
				Title:    p.Title,
				Content:  decision.Content,
				Comments: ids,
			}
			if !yield(record) {
				return
			}
		}
	}, nil
}

// GetPostDetail returns one post with full content. A hidden post the
// viewer may not see is FORBIDDEN, never a redacted record.
func (s *FeedService) GetPostDetail(ctx context.Context, viewer models.Viewer, id uint) (*PostView, error) {
	defer observability.TrackFeed("detail")()
	span, ctx := observability.NewSpan(ctx, "feed.detail", observability.ViewerAttributes(viewer)...)
	defer span.End()

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	decision, err := visibility.ForDetail(viewer, visibility.PostItem(post))
	if err != nil {
		forbidden := models.NewForbiddenError("You are not permitted to view this post")
		forbidden.Err = err
		return nil, forbidden
	}

	comments, err := s.commentRepo.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	view := postView(post, decision)
	view.Comments = nestedComments(viewer, comments, visibility.Full)

	if s.mediaRepo != nil {
		media, err := s.mediaRepo.ListByPost(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range media {
			view.Media = append(view.Media, m.File)
		}
	}
	return &view, nil
}

func postView(p *models.Post, d visibility.Decision) PostView {
	return PostView{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Author:    p.Author.Username,
		Title:     p.Title,
		Content:   d.Content,
		CreatedAt: p.CreatedAt,
		IsHidden:  p.IsHidden,
		Class:     d.Class,
	}
}

func nestedComments(viewer models.Viewer, comments []*models.Comment, projection visibility.Projection) []CommentView {
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		d := visibility.ForNested(viewer, visibility.CommentItem(c), projection)
		views = append(views, CommentView{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Author:    c.Author.Username,
			CreatedAt: c.CreatedAt,
			Content:   d.Content,
			IsHidden:  c.IsHidden,
			Redacted:  d.Redacted,
			Class:     d.Class,
		})
	}
	return views
}

func emptySeq[T any]() iter.Seq[T] {
	return func(func(T) bool) {}
}
