package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

const commentPreviewLength = 120

// CommentService manages ticket discussion threads.
type CommentService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// CommentView is a comment with its author's display name.
type CommentView struct {
	Comment    domain.Comment
	AuthorName string
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	s := &CommentService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = systemClock
	}
	return s
}

// Create adds a comment to a ticket the author may see. Only managers may post
// internal comments.
func (s *CommentService) Create(ctx context.Context, author *domain.User, ticketID int64, content string, internal bool) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}
	if internal && !seesAllTickets(author) {
		return nil, apperrors.NewForbidden("only managers can create internal comments")
	}

	box := &outbox{}
	comment := &domain.Comment{
		TicketID: ticketID,
		UserID:   author.ID,
		Content:  content,
		Internal: internal,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := lookupTicket(ctx, tx.Tickets(), ticketID, false)
		if err != nil {
			return err
		}
		if !canView(author, ticket) {
			return apperrors.NewForbidden("access denied")
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		box.add(events.Event{
			Type:     events.EventTicketCommented,
			TicketID: ticketID,
			Actor:    events.UserActor(&author.ID),
			Payload: events.TicketCommentedPayload{
				CommentID:   comment.ID,
				AuthorID:    author.ID,
				Internal:    internal,
				BodyPreview: preview(content, commentPreviewLength),
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	publishAll(ctx, s.dispatcher, s.now(), box.events)
	s.logger.Debug("comment added",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("comment_id", comment.ID),
		zap.Bool("internal", internal))
	return &CommentView{Comment: *comment, AuthorName: author.Name}, nil
}

// List returns the ticket's thread oldest first. Internal comments are only
// shown to managers.
func (s *CommentService) List(ctx context.Context, viewer *domain.User, ticketID int64) ([]CommentView, error) {
	ticket, err := lookupTicket(ctx, s.store.Tickets(), ticketID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !canView(viewer, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID, seesAllTickets(viewer))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	names := map[int64]string{}
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		name, ok := names[c.UserID]
		if !ok {
			name = actorName(ctx, s.store.Users(), &c.UserID)
			names[c.UserID] = name
		}
		out = append(out, CommentView{Comment: c, AuthorName: name})
	}
	return out, nil
}

// Update replaces the text of a comment. Only its author may edit it.
func (s *CommentService) Update(ctx context.Context, actor *domain.User, commentID int64, content string) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}
	var comment *domain.Comment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		comment, err = lookupComment(ctx, tx.Comments(), commentID)
		if err != nil {
			return err
		}
		if comment.UserID != actor.ID {
			return apperrors.NewForbidden("you can only edit your own comments")
		}
		comment.Content = content
		return tx.Comments().UpdateContent(ctx, comment)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CommentView{Comment: *comment, AuthorName: actor.Name}, nil
}

// Delete removes a comment. Authors may delete their own; managers may delete any.
func (s *CommentService) Delete(ctx context.Context, actor *domain.User, commentID int64) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		comment, err := lookupComment(ctx, tx.Comments(), commentID)
		if err != nil {
			return err
		}
		if comment.UserID != actor.ID && !seesAllTickets(actor) {
			return apperrors.NewForbidden("access denied")
		}
		return tx.Comments().Delete(ctx, commentID)
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Debug("comment deleted", zap.Int64("comment_id", commentID), zap.Int64("actor_id", actor.ID))
	return nil
}

func lookupComment(ctx context.Context, repo repository.CommentRepository, id int64) (*domain.Comment, error) {
	comment, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": id})
		}
		return nil, err
	}
	return comment, nil
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
