package service

import (
	"context"
	"strings"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

// BookmarkRequest: параметры сохранения, коллекция должна принадлежать актору.
type BookmarkRequest struct {
	CollectionID *int64
	Metadata     map[string]interface{}
}

type BookmarkService interface {
	// Save повторно сохраняет без дубликата, обновляя коллекцию и metadata.
	Save(ctx context.Context, messageID int64, actor domain.Actor, req BookmarkRequest) (*domain.MessageBookmark, error)
	Unsave(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	// Toggle возвращает true, если сообщение после вызова сохранено.
	Toggle(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	IsSaved(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageBookmark, error)
	List(ctx context.Context, actor domain.Actor, collectionID *int64) ([]*domain.MessageBookmark, error)
	TimesSaved(ctx context.Context, messageID int64, viewer domain.Actor) (int, error)
	CreateCollection(ctx context.Context, owner domain.Actor, name string) (*domain.BookmarkCollection, error)
	ListCollections(ctx context.Context, owner domain.Actor) ([]*domain.BookmarkCollection, error)
}

type bookmarkService struct {
	*base
}

func NewBookmarkService(b *base) BookmarkService {
	return &bookmarkService{base: b}
}

func (s *bookmarkService) visible(ctx context.Context, messageID int64, actor domain.Actor) (*domain.Message, error) {
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return nil, err
	}
	if !s.messages.Bookmark(actor, message, thread) {
		return nil, apperrors.Forbidden("message is not visible to this actor")
	}
	return message, nil
}

func (s *bookmarkService) ownCollection(ctx context.Context, actor domain.Actor, id int64) error {
	collection, err := s.store.Bookmarks().GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if !collection.Owner.Equal(actor) {
		return apperrors.Forbidden("bookmark collection belongs to another actor")
	}
	return nil
}

func (s *bookmarkService) Save(ctx context.Context, messageID int64, actor domain.Actor, req BookmarkRequest) (*domain.MessageBookmark, error) {
	message, err := s.visible(ctx, messageID, actor)
	if err != nil {
		return nil, err
	}
	if req.CollectionID != nil {
		if err := s.ownCollection(ctx, actor, *req.CollectionID); err != nil {
			return nil, err
		}
	}

	bookmark := &domain.MessageBookmark{
		MessageID:    message.ID,
		Actor:        actor,
		CollectionID: req.CollectionID,
		Metadata:     req.Metadata,
		CreatedAt:    s.now(),
	}
	if err := s.store.Bookmarks().Save(ctx, bookmark); err != nil {
		s.log.Error("Failed to save bookmark", "error", err, "message_id", messageID, "actor", actor.String())
		return nil, err
	}

	s.emit(ctx, s.event(domain.EventMessageBookmarked).WithMessage(message).WithActor(actor))
	return bookmark, nil
}

// Unsave не проверяет видимость: снять закладку можно и с удаленного сообщения.
func (s *bookmarkService) Unsave(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	message, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	removed, err := s.store.Bookmarks().Delete(ctx, messageID, actor)
	if err != nil {
		s.log.Error("Failed to remove bookmark", "error", err, "message_id", messageID, "actor", actor.String())
		return false, err
	}
	if removed {
		s.emit(ctx, s.event(domain.EventMessageUnbookmarked).WithMessage(message).WithActor(actor))
	}
	return removed, nil
}

func (s *bookmarkService) Toggle(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	saved, err := s.IsSaved(ctx, messageID, actor)
	if err != nil {
		return false, err
	}
	if saved {
		_, err := s.Unsave(ctx, messageID, actor)
		return false, err
	}
	if _, err := s.Save(ctx, messageID, actor, BookmarkRequest{}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *bookmarkService) IsSaved(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	_, err := s.store.Bookmarks().Get(ctx, messageID, actor)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *bookmarkService) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageBookmark, error) {
	return s.store.Bookmarks().Get(ctx, messageID, actor)
}

func (s *bookmarkService) List(ctx context.Context, actor domain.Actor, collectionID *int64) ([]*domain.MessageBookmark, error) {
	if collectionID != nil {
		if err := s.ownCollection(ctx, actor, *collectionID); err != nil {
			return nil, err
		}
	}
	bookmarks, err := s.store.Bookmarks().ListByActor(ctx, actor, collectionID)
	if err != nil {
		s.log.Error("Failed to list bookmarks", "error", err, "actor", actor.String())
		return nil, err
	}
	return bookmarks, nil
}

func (s *bookmarkService) TimesSaved(ctx context.Context, messageID int64, viewer domain.Actor) (int, error) {
	message, err := s.visible(ctx, messageID, viewer)
	if err != nil {
		return 0, err
	}
	return s.store.Bookmarks().CountByMessage(ctx, message.ID)
}

func (s *bookmarkService) CreateCollection(ctx context.Context, owner domain.Actor, name string) (*domain.BookmarkCollection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("name", "collection name is required")
	}
	collection := &domain.BookmarkCollection{Owner: owner, Name: name, CreatedAt: s.now()}
	if err := s.store.Bookmarks().CreateCollection(ctx, collection); err != nil {
		s.log.Error("Failed to create bookmark collection", "error", err, "owner", owner.String())
		return nil, err
	}
	return collection, nil
}

func (s *bookmarkService) ListCollections(ctx context.Context, owner domain.Actor) ([]*domain.BookmarkCollection, error) {
	return s.store.Bookmarks().ListCollections(ctx, owner)
}
