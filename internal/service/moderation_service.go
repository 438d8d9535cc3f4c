package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cloudysky/internal/config"
	"cloudysky/internal/middleware"
	"cloudysky/internal/models"
	"cloudysky/internal/notifications"
	"cloudysky/internal/observability"
	"cloudysky/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// TargetKind selects what a hide applies to.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// HideResult describes what a hide did. Applied is false when a missing
// target was tolerated by the succeed policy.
type HideResult struct {
	Kind     TargetKind               `json:"kind"`
	TargetID uint                     `json:"target_id"`
	Applied  bool                     `json:"applied"`
	Reason   *models.ModerationReason `json:"reason,omitempty"`
	HiddenAt time.Time                `json:"hidden_at"`
}

// ModerationPolicy holds the missing-target policy of each hide operation.
type ModerationPolicy struct {
	PostMissing    string
	CommentMissing string
}

// PolicyFromConfig reads the per-operation missing-target policies.
func PolicyFromConfig(cfg *config.Config) ModerationPolicy {
	return ModerationPolicy{
		PostMissing:    cfg.HidePostMissing,
		CommentMissing: cfg.HideCommentMissing,
	}
}

func (p ModerationPolicy) reportsMissing(kind TargetKind) bool {
	if kind == TargetComment {
		return p.CommentMissing == config.MissingTargetReport
	}
	return p.PostMissing == config.MissingTargetReport
}

// ModerationEvents receives a notification after each applied hide.
type ModerationEvents interface {
	PublishModeration(ctx context.Context, ev notifications.ModerationEvent) error
}

// ModerationService hides posts and comments on behalf of staff.
type ModerationService struct {
	repo   repository.ModerationRepository
	policy ModerationPolicy
	events ModerationEvents
	now    func() time.Time
}

// NewModerationService returns a new ModerationService. events may be nil.
func NewModerationService(repo repository.ModerationRepository, policy ModerationPolicy, events ModerationEvents) *ModerationService {
	return &ModerationService{
		repo:   repo,
		policy: policy,
		events: events,
		now:    time.Now,
	}
}

// HidePost hides the post identified by rawID, as submitted in a form.
func (s *ModerationService) HidePost(ctx context.Context, actor models.Viewer, rawID, reasonText string) (*HideResult, error) {
	return s.HideByRef(ctx, actor, TargetPost, rawID, reasonText)
}

// HideComment hides the comment identified by rawID.
func (s *ModerationService) HideComment(ctx context.Context, actor models.Viewer, rawID, reasonText string) (*HideResult, error) {
	return s.HideByRef(ctx, actor, TargetComment, rawID, reasonText)
}

// HideByRef parses rawID before hiding. An unparseable id is treated like a
// missing target: a validation error under the report policy, a no-op
// success otherwise.
func (s *ModerationService) HideByRef(ctx context.Context, actor models.Viewer, kind TargetKind, rawID, reasonText string) (*HideResult, error) {
	if err := authorizeModerator(actor); err != nil {
		s.record(ctx, kind, 0, "unauthorized")
		return nil, err
	}

	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		if s.policy.reportsMissing(kind) {
			s.record(ctx, kind, 0, "invalid")
			return nil, models.NewValidationError("A numeric " + string(kind) + "_id is required")
		}
		s.record(ctx, kind, 0, "skipped")
		return &HideResult{Kind: kind}, nil
	}
	return s.Hide(ctx, actor, kind, uint(id), reasonText)
}

// Hide marks the target hidden with the actor, the current time and the
// optional reason, all in one write. Hiding again overwrites those fields.
func (s *ModerationService) Hide(ctx context.Context, actor models.Viewer, kind TargetKind, targetID uint, reasonText string) (*HideResult, error) {
	span, ctx := observability.NewSpan(ctx, "moderation.hide", append(
		observability.ViewerAttributes(actor),
		attribute.String("target", string(kind)),
		attribute.Int64("target_id", int64(targetID)),
	)...)
	defer span.End()

	if err := authorizeModerator(actor); err != nil {
		s.record(ctx, kind, targetID, "unauthorized")
		return nil, err
	}

	fields := repository.HideFields{
		ActorID:    actor.ID(),
		ReasonText: strings.TrimSpace(reasonText),
		At:         s.now().UTC(),
	}

	reason, err := s.repo.Hide(ctx, hideTarget(kind), targetID, fields)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) && !s.policy.reportsMissing(kind) {
			s.record(ctx, kind, targetID, "missing")
			return &HideResult{Kind: kind, TargetID: targetID}, nil
		}
		span.SetError(err)
		s.record(ctx, kind, targetID, "error")
		return nil, err
	}

	s.record(ctx, kind, targetID, "hidden")
	result := &HideResult{
		Kind:     kind,
		TargetID: targetID,
		Applied:  true,
		Reason:   reason,
		HiddenAt: fields.At,
	}
	s.publish(ctx, actor, result)
	return result, nil
}

func authorizeModerator(actor models.Viewer) error {
	if !actor.Authenticated {
		return models.NewUnauthorizedError("Authentication required")
	}
	if !actor.IsStaff {
		return models.NewUnauthorizedError("Staff privileges required")
	}
	return nil
}

func hideTarget(kind TargetKind) repository.HideTarget {
	if kind == TargetComment {
		return repository.HideCommentTarget
	}
	return repository.HidePostTarget
}

// publish never fails the hide; the write has already happened.
func (s *ModerationService) publish(ctx context.Context, actor models.Viewer, result *HideResult) {
	if s.events == nil {
		return
	}
	ev := notifications.ModerationEvent{
		Kind:     string(result.Kind),
		TargetID: result.TargetID,
		ActorID:  actor.ID(),
		Actor:    actor.Username,
		HiddenAt: result.HiddenAt,
	}
	if result.Reason != nil {
		ev.ReasonText = result.Reason.ReasonText
	}
	if err := s.events.PublishModeration(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish moderation event", slog.String("error", err.Error()))
	}
}

func (s *ModerationService) record(ctx context.Context, kind TargetKind, targetID uint, outcome string) {
	observability.ModerationActions.WithLabelValues(string(kind), outcome).Inc()
	middleware.Logger.InfoContext(ctx, "moderation hide",
		slog.String("target", string(kind)),
		slog.Uint64("target_id", uint64(targetID)),
		slog.String("outcome", outcome),
	)
}
