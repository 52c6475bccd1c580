package repository

import (
	"context"

	"chat_engine/internal/domain"

	"github.com/jackc/pgx/v5"
)

type reactionRepository struct{ s *postgresStore }

func queryReactions(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.MessageReaction, error) {
	rows, err := s.db.Query(ctx, `SELECT message_id, actor_type, actor_id, reaction, created_at FROM message_reactions `+where, args...)
	if err != nil {
		s.log.Error("Failed to query reactions", "error", err)
		return nil, err
	}
	defer rows.Close()

	reactions := make([]*domain.MessageReaction, 0)
	for rows.Next() {
		r := &domain.MessageReaction{}
		if err := rows.Scan(&r.MessageID, &r.Actor.Type, &r.Actor.ID, &r.Reaction, &r.CreatedAt); err != nil {
			s.log.Error("Failed to scan reaction", "error", err)
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

func (r *reactionRepository) Set(ctx context.Context, reaction *domain.MessageReaction) error {
	query := `
		INSERT INTO message_reactions (message_id, actor_type, actor_id, reaction, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		ON CONFLICT (message_id, actor_type, actor_id) DO UPDATE
		SET reaction = EXCLUDED.reaction, created_at = EXCLUDED.created_at
		RETURNING created_at
	`
	var createdAt any
	if !reaction.CreatedAt.IsZero() {
		createdAt = reaction.CreatedAt
	}
	err := r.s.db.QueryRow(ctx, query,
		reaction.MessageID, reaction.Actor.Type, reaction.Actor.ID, reaction.Reaction, createdAt,
	).Scan(&reaction.CreatedAt)
	if err != nil {
		r.s.log.Error("Failed to set reaction", "error", err, "message_id", reaction.MessageID)
		return translate(err, "message")
	}
	return nil
}

func (r *reactionRepository) Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	tag, err := r.s.db.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND actor_type = $2 AND actor_id = $3`,
		messageID, actor.Type, actor.ID)
	if err != nil {
		r.s.log.Error("Failed to delete reaction", "error", err, "message_id", messageID)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *reactionRepository) ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageReaction, error) {
	return queryReactions(ctx, r.s, `WHERE message_id = $1 ORDER BY created_at, actor_type, actor_id`, messageID)
}

func (r *reactionRepository) ListByActor(ctx context.Context, actor domain.Actor) ([]*domain.MessageReaction, error) {
	return queryReactions(ctx, r.s,
		`WHERE actor_type = $1 AND actor_id = $2 ORDER BY created_at, message_id`, actor.Type, actor.ID)
}

type bookmarkRepository struct{ s *postgresStore }

func queryBookmarks(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.MessageBookmark, error) {
	query := `SELECT message_id, actor_type, actor_id, collection_id, metadata, created_at FROM message_bookmarks ` + where
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		s.log.Error("Failed to query bookmarks", "error", err)
		return nil, err
	}
	defer rows.Close()

	bookmarks := make([]*domain.MessageBookmark, 0)
	for rows.Next() {
		b := &domain.MessageBookmark{}
		if err := rows.Scan(&b.MessageID, &b.Actor.Type, &b.Actor.ID, &b.CollectionID, &b.Metadata, &b.CreatedAt); err != nil {
			s.log.Error("Failed to scan bookmark", "error", err)
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// Save сохраняет исходное время закладки при повторном сохранении.
func (r *bookmarkRepository) Save(ctx context.Context, bookmark *domain.MessageBookmark) error {
	query := `
		INSERT INTO message_bookmarks (message_id, actor_type, actor_id, collection_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		ON CONFLICT (message_id, actor_type, actor_id) DO UPDATE
		SET collection_id = EXCLUDED.collection_id, metadata = EXCLUDED.metadata
		RETURNING created_at
	`
	var createdAt any
	if !bookmark.CreatedAt.IsZero() {
		createdAt = bookmark.CreatedAt
	}
	err := r.s.db.QueryRow(ctx, query,
		bookmark.MessageID, bookmark.Actor.Type, bookmark.Actor.ID, bookmark.CollectionID, bookmark.Metadata, createdAt,
	).Scan(&bookmark.CreatedAt)
	if err != nil {
		r.s.log.Error("Failed to save bookmark", "error", err, "message_id", bookmark.MessageID)
		return translate(err, "message")
	}
	return nil
}

func (r *bookmarkRepository) Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	tag, err := r.s.db.Exec(ctx,
		`DELETE FROM message_bookmarks WHERE message_id = $1 AND actor_type = $2 AND actor_id = $3`,
		messageID, actor.Type, actor.ID)
	if err != nil {
		r.s.log.Error("Failed to delete bookmark", "error", err, "message_id", messageID)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bookmarkRepository) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageBookmark, error) {
	bookmarks, err := queryBookmarks(ctx, r.s,
		`WHERE message_id = $1 AND actor_type = $2 AND actor_id = $3`, messageID, actor.Type, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(bookmarks) == 0 {
		return nil, translate(pgx.ErrNoRows, "bookmark")
	}
	return bookmarks[0], nil
}

func (r *bookmarkRepository) ListByActor(ctx context.Context, actor domain.Actor, collectionID *int64) ([]*domain.MessageBookmark, error) {
	return queryBookmarks(ctx, r.s, `
		WHERE actor_type = $1 AND actor_id = $2 AND ($3::BIGINT IS NULL OR collection_id = $3)
		ORDER BY created_at DESC, message_id DESC`,
		actor.Type, actor.ID, collectionID)
}

func (r *bookmarkRepository) CountByMessage(ctx context.Context, messageID int64) (int, error) {
	var count int
	err := r.s.db.QueryRow(ctx, `SELECT COUNT(*) FROM message_bookmarks WHERE message_id = $1`, messageID).Scan(&count)
	if err != nil {
		r.s.log.Error("Failed to count bookmarks", "error", err, "message_id", messageID)
		return 0, err
	}
	return count, nil
}

func (r *bookmarkRepository) CreateCollection(ctx context.Context, collection *domain.BookmarkCollection) error {
	query := `
		INSERT INTO bookmark_collections (owner_type, owner_id, name, created_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		RETURNING id, created_at
	`
	var createdAt any
	if !collection.CreatedAt.IsZero() {
		createdAt = collection.CreatedAt
	}
	err := r.s.db.QueryRow(ctx, query, collection.Owner.Type, collection.Owner.ID, collection.Name, createdAt).
		Scan(&collection.ID, &collection.CreatedAt)
	if err != nil {
		r.s.log.Error("Failed to create bookmark collection", "error", err, "owner", collection.Owner.String())
		return err
	}
	return nil
}

func queryCollections(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.BookmarkCollection, error) {
	rows, err := s.db.Query(ctx, `SELECT id, owner_type, owner_id, name, created_at FROM bookmark_collections `+where, args...)
	if err != nil {
		s.log.Error("Failed to query bookmark collections", "error", err)
		return nil, err
	}
	defer rows.Close()

	collections := make([]*domain.BookmarkCollection, 0)
	for rows.Next() {
		c := &domain.BookmarkCollection{}
		if err := rows.Scan(&c.ID, &c.Owner.Type, &c.Owner.ID, &c.Name, &c.CreatedAt); err != nil {
			s.log.Error("Failed to scan bookmark collection", "error", err)
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (r *bookmarkRepository) GetCollection(ctx context.Context, id int64) (*domain.BookmarkCollection, error) {
	collections, err := queryCollections(ctx, r.s, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, translate(pgx.ErrNoRows, "bookmark collection")
	}
	return collections[0], nil
}

func (r *bookmarkRepository) ListCollections(ctx context.Context, owner domain.Actor) ([]*domain.BookmarkCollection, error) {
	return queryCollections(ctx, r.s, `WHERE owner_type = $1 AND owner_id = $2 ORDER BY id`, owner.Type, owner.ID)
}
