package memory

import (
	"context"
	"sort"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

type reactionRepo struct{ s *Store }

func sortReactions(out []*domain.MessageReaction) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if out[i].MessageID == out[j].MessageID {
				return out[i].Actor.String() < out[j].Actor.String()
			}
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}

func reactionsOf(st *state, messageID int64) []*domain.MessageReaction {
	var out []*domain.MessageReaction
	for k, r := range st.reactions {
		if k.MessageID == messageID {
			reaction := r
			out = append(out, &reaction)
		}
	}
	sortReactions(out)
	return out
}

func (r reactionRepo) Set(ctx context.Context, reaction *domain.MessageReaction) error {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[reaction.MessageID]; !ok {
		return apperrors.NotFound("message")
	}
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = r.s.now()
	}
	r.s.st.reactions[reaction.Key()] = *reaction
	return nil
}

func (r reactionRepo) Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	defer r.s.lock()()
	key := domain.NewDeliveryKey(messageID, actor)
	if _, ok := r.s.st.reactions[key]; !ok {
		return false, nil
	}
	delete(r.s.st.reactions, key)
	return true, nil
}

func (r reactionRepo) ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageReaction, error) {
	defer r.s.lock()()
	return reactionsOf(r.s.st, messageID), nil
}

func (r reactionRepo) ListByActor(ctx context.Context, actor domain.Actor) ([]*domain.MessageReaction, error) {
	defer r.s.lock()()
	out := make([]*domain.MessageReaction, 0)
	for _, reaction := range r.s.st.reactions {
		if reaction.Actor.Equal(actor) {
			c := reaction
			out = append(out, &c)
		}
	}
	sortReactions(out)
	return out, nil
}

type bookmarkRepo struct{ s *Store }

func copyBookmark(b domain.MessageBookmark) *domain.MessageBookmark {
	c := b
	c.Metadata = copyMap(b.Metadata)
	if b.CollectionID != nil {
		id := *b.CollectionID
		c.CollectionID = &id
	}
	return &c
}

func (r bookmarkRepo) Save(ctx context.Context, bookmark *domain.MessageBookmark) error {
	defer r.s.lock()()
	st := r.s.st
	if _, ok := st.messages[bookmark.MessageID]; !ok {
		return apperrors.NotFound("message")
	}
	if bookmark.CollectionID != nil {
		if _, ok := st.collections[*bookmark.CollectionID]; !ok {
			return apperrors.NotFound("bookmark collection")
		}
	}
	if existing, ok := st.bookmarks[bookmark.Key()]; ok {
		bookmark.CreatedAt = existing.CreatedAt
	} else if bookmark.CreatedAt.IsZero() {
		bookmark.CreatedAt = r.s.now()
	}
	st.bookmarks[bookmark.Key()] = *copyBookmark(*bookmark)
	return nil
}

func (r bookmarkRepo) Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	defer r.s.lock()()
	key := domain.NewDeliveryKey(messageID, actor)
	if _, ok := r.s.st.bookmarks[key]; !ok {
		return false, nil
	}
	delete(r.s.st.bookmarks, key)
	return true, nil
}

func (r bookmarkRepo) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageBookmark, error) {
	defer r.s.lock()()
	b, ok := r.s.st.bookmarks[domain.NewDeliveryKey(messageID, actor)]
	if !ok {
		return nil, apperrors.NotFound("bookmark")
	}
	return copyBookmark(b), nil
}

func (r bookmarkRepo) ListByActor(ctx context.Context, actor domain.Actor, collectionID *int64) ([]*domain.MessageBookmark, error) {
	defer r.s.lock()()
	out := make([]*domain.MessageBookmark, 0)
	for _, b := range r.s.st.bookmarks {
		if !b.Actor.Equal(actor) {
			continue
		}
		if collectionID != nil && (b.CollectionID == nil || *b.CollectionID != *collectionID) {
			continue
		}
		out = append(out, copyBookmark(b))
	}
	domain.SortBookmarks(out)
	return out, nil
}

func (r bookmarkRepo) CountByMessage(ctx context.Context, messageID int64) (int, error) {
	defer r.s.lock()()
	n := 0
	for k := range r.s.st.bookmarks {
		if k.MessageID == messageID {
			n++
		}
	}
	return n, nil
}

func (r bookmarkRepo) CreateCollection(ctx context.Context, collection *domain.BookmarkCollection) error {
	defer r.s.lock()()
	collection.ID = r.s.st.nextID()
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = r.s.now()
	}
	r.s.st.collections[collection.ID] = *collection
	return nil
}

func (r bookmarkRepo) GetCollection(ctx context.Context, id int64) (*domain.BookmarkCollection, error) {
	defer r.s.lock()()
	c, ok := r.s.st.collections[id]
	if !ok {
		return nil, apperrors.NotFound("bookmark collection")
	}
	return &c, nil
}

func (r bookmarkRepo) ListCollections(ctx context.Context, owner domain.Actor) ([]*domain.BookmarkCollection, error) {
	defer r.s.lock()()
	out := make([]*domain.BookmarkCollection, 0)
	for _, c := range r.s.st.collections {
		if c.Owner.Equal(owner) {
			collection := c
			out = append(out, &collection)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
