package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

const maxReactionLength = 64

type ReactionService interface {
	// React ставит реакцию; прежняя реакция актора на это сообщение заменяется.
	React(ctx context.Context, messageID int64, actor domain.Actor, reaction string) (*domain.MessageReaction, error)
	// Unreact возвращает false, если реакции не было.
	Unreact(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	Summary(ctx context.Context, messageID int64, viewer domain.Actor) (domain.ReactionSummary, error)
	List(ctx context.Context, messageID int64, viewer domain.Actor) ([]*domain.MessageReaction, error)
	// Given: реакции, поставленные актором.
	Given(ctx context.Context, actor domain.Actor) ([]*domain.MessageReaction, error)
}

type reactionService struct {
	*base
}

func NewReactionService(b *base) ReactionService {
	return &reactionService{base: b}
}

func (s *reactionService) visible(ctx context.Context, messageID int64, actor domain.Actor) (*domain.Message, error) {
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return nil, err
	}
	if !s.messages.React(actor, message, thread) {
		return nil, apperrors.Forbidden("message is not visible to this actor")
	}
	return message, nil
}

func (s *reactionService) React(ctx context.Context, messageID int64, actor domain.Actor, reaction string) (*domain.MessageReaction, error) {
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return nil, apperrors.Validation("reaction", "reaction is required")
	}
	if utf8.RuneCountInString(reaction) > maxReactionLength {
		return nil, apperrors.Validation("reaction", "reaction is too long")
	}

	message, err := s.visible(ctx, messageID, actor)
	if err != nil {
		return nil, err
	}
	if current := message.ReactionBy(actor); current != nil && current.Reaction == reaction {
		return current, nil
	}

	r := &domain.MessageReaction{
		MessageID: message.ID,
		Actor:     actor,
		Reaction:  reaction,
		CreatedAt: s.now(),
	}
	if err := s.store.Reactions().Set(ctx, r); err != nil {
		s.log.Error("Failed to set reaction", "error", err, "message_id", messageID, "actor", actor.String())
		return nil, err
	}

	s.emit(ctx, s.event(domain.EventMessageReacted).WithMessage(message).WithActor(actor).WithData("reaction", reaction))
	return r, nil
}

func (s *reactionService) Unreact(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	message, err := s.visible(ctx, messageID, actor)
	if err != nil {
		return false, err
	}
	removed, err := s.store.Reactions().Delete(ctx, message.ID, actor)
	if err != nil {
		s.log.Error("Failed to remove reaction", "error", err, "message_id", messageID, "actor", actor.String())
		return false, err
	}
	if removed {
		s.emit(ctx, s.event(domain.EventMessageUnreacted).WithMessage(message).WithActor(actor))
	}
	return removed, nil
}

func (s *reactionService) Summary(ctx context.Context, messageID int64, viewer domain.Actor) (domain.ReactionSummary, error) {
	message, err := s.visible(ctx, messageID, viewer)
	if err != nil {
		return domain.ReactionSummary{}, err
	}
	return message.ReactionSummaryFor(viewer), nil
}

func (s *reactionService) List(ctx context.Context, messageID int64, viewer domain.Actor) ([]*domain.MessageReaction, error) {
	message, err := s.visible(ctx, messageID, viewer)
	if err != nil {
		return nil, err
	}
	if message.Reactions == nil {
		return []*domain.MessageReaction{}, nil
	}
	return message.Reactions, nil
}

func (s *reactionService) Given(ctx context.Context, actor domain.Actor) ([]*domain.MessageReaction, error) {
	reactions, err := s.store.Reactions().ListByActor(ctx, actor)
	if err != nil {
		s.log.Error("Failed to list reactions", "error", err, "actor", actor.String())
		return nil, err
	}
	return reactions, nil
}
