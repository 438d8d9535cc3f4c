package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloudysky/internal/middleware"
	"cloudysky/internal/models"
	"cloudysky/internal/repository"
	"cloudysky/internal/storage"
	"cloudysky/internal/visibility"
)

type MediaService struct {
	mediaRepo   repository.MediaRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	files       storage.FileStore
	maxBytes    int64
}

// UploadInput carries one uploaded file and the optional owner ids as they
// arrived in the form.
type UploadInput struct {
	PostID    string
	CommentID string
	Filename  string
	Size      int64
	Body      io.Reader
}

func NewMediaService(
	mediaRepo repository.MediaRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	files storage.FileStore,
	maxUploadMB int,
) *MediaService {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &MediaService{
		mediaRepo:   mediaRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		files:       files,
		maxBytes:    int64(maxUploadMB) << 20,
	}
}

// Upload stores the file and records it against a post, a comment, or
// neither. Naming both owners is rejected before anything is written.
func (s *MediaService) Upload(ctx context.Context, viewer models.Viewer, in UploadInput) (*models.Media, error) {
	if !viewer.Authenticated {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if in.Body == nil || strings.TrimSpace(in.Filename) == "" {
		return nil, models.NewValidationError("A file is required")
	}
	if in.Size > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d MB)", s.maxBytes>>20))
	}

	postID, err := optionalID(in.PostID, "post_id")
	if err != nil {
		return nil, err
	}
	commentID, err := optionalID(in.CommentID, "comment_id")
	if err != nil {
		return nil, err
	}
	if postID != nil && commentID != nil {
		return nil, models.NewValidationError("Media can belong to a post or a comment, not both")
	}
	if err := s.checkOwner(ctx, viewer, postID, commentID); err != nil {
		return nil, err
	}

	ref, err := s.files.Save(ctx, in.Filename, &cappedReader{r: in.Body, left: s.maxBytes})
	if errors.Is(err, errTooLarge) {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d MB)", s.maxBytes>>20))
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	media := &models.Media{PostID: postID, CommentID: commentID, File: ref}
	if err := s.mediaRepo.Create(ctx, media); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "Media uploaded",
		"media_id", media.ID,
		"file", ref,
		"uploader_id", viewer.ID(),
	)
	return media, nil
}

// checkOwner requires the owning item to exist and be visible to the
// uploader.
func (s *MediaService) checkOwner(ctx context.Context, viewer models.Viewer, postID, commentID *uint) error {
	var item visibility.Item
	switch {
	case postID != nil:
		post, err := s.postRepo.GetByID(ctx, *postID)
		if err != nil {
			return err
		}
		item = visibility.PostItem(post)
	case commentID != nil:
		comment, err := s.commentRepo.GetByID(ctx, *commentID)
		if err != nil {
			return err
		}
		item = visibility.CommentItem(comment)
	default:
		return nil
	}
	if !visibility.CanSee(viewer, item) {
		return models.NewForbiddenError("You are not permitted to attach media here")
	}
	return nil
}

func optionalID(raw, field string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, models.NewValidationError("Invalid " + field)
	}
	v := uint(id)
	return &v, nil
}

var errTooLarge = errors.New("upload exceeds size limit")

// cappedReader fails once more than left bytes have been read, so a body
// larger than its declared size never lands whole in the store.
type cappedReader struct {
	r    io.Reader
	left int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, errTooLarge
	}
	return n, err
}
