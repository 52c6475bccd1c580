package service

import (
	"strings"
	"testing"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactReplacesPreviousReaction(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "news")

	_, err := f.svc.Reactions.React(f.ctx, msg.ID, bob, "like")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	reaction, err := f.svc.Reactions.React(f.ctx, msg.ID, bob, "love")
	require.NoError(t, err)
	assert.Equal(t, "love", reaction.Reaction)

	reloaded := f.reload(t, msg.ID)
	require.Len(t, reloaded.Reactions, 1)
	assert.Equal(t, "love", reloaded.ReactionBy(bob).Reaction)

	// та же реакция повторно не порождает события
	_, err = f.svc.Reactions.React(f.ctx, msg.ID, bob, "love")
	require.NoError(t, err)
	assert.Len(t, f.events.OfType(domain.EventMessageReacted), 2)
}

func TestReactionBreakdownAndViewerSummary(t *testing.T) {
	f := newFixture(t)
	thread := f.group(t)
	msg := f.text(t, thread.ID, alice, "release")

	for actor, reaction := range map[domain.Actor]string{alice: "🔥", bob: "❤️", carol: "🔥"} {
		_, err := f.svc.Reactions.React(f.ctx, msg.ID, actor, reaction)
		require.NoError(t, err)
	}

	summary, err := f.svc.Reactions.Summary(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, map[string]int{"🔥": 2, "❤️": 1}, summary.Breakdown)
	assert.True(t, summary.HasReacted)
	require.NotNil(t, summary.UserReaction)
	assert.Equal(t, "❤️", *summary.UserReaction)

	view, err := f.svc.Messages.Get(f.ctx, carol, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Reactions.Count)
	assert.Equal(t, "🔥", *view.Reactions.UserReaction)

	views, err := f.svc.Messages.List(f.ctx, alice, thread.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Reactions.HasReacted)
}

func TestUnreactRemovesOnlyOwnReaction(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "hi")

	_, err := f.svc.Reactions.React(f.ctx, msg.ID, alice, "like")
	require.NoError(t, err)
	_, err = f.svc.Reactions.React(f.ctx, msg.ID, bob, "like")
	require.NoError(t, err)

	removed, err := f.svc.Reactions.Unreact(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.svc.Reactions.Unreact(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.False(t, removed)

	summary, err := f.svc.Reactions.Summary(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
	assert.False(t, summary.HasReacted)
	assert.Nil(t, summary.UserReaction)
	assert.Len(t, f.events.OfType(domain.EventMessageUnreacted), 1)
}

func TestReactRequiresVisibleMessage(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "private")

	_, err := f.svc.Reactions.React(f.ctx, msg.ID, carol, "like")
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Deletions.DeleteForActor(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	_, err = f.svc.Reactions.React(f.ctx, msg.ID, bob, "like")
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Reactions.React(f.ctx, 999, alice, "like")
	assert.True(t, apperrors.IsNotFound(err))

	for _, bad := range []string{"", "   ", strings.Repeat("x", 65)} {
		_, err = f.svc.Reactions.React(f.ctx, msg.ID, alice, bad)
		assert.True(t, apperrors.IsValidation(err), bad)
	}
	assert.Empty(t, f.events.OfType(domain.EventMessageReacted))
}

func TestReactionsGivenAndCascade(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) {
		c.Messages.DeletionMode = string(domain.DeletionModeHard)
	})
	thread := f.direct(t, alice, bob)
	first := f.text(t, thread.ID, alice, "one")
	second := f.text(t, thread.ID, alice, "two")

	_, err := f.svc.Reactions.React(f.ctx, first.ID, bob, "like")
	require.NoError(t, err)
	_, err = f.svc.Reactions.React(f.ctx, second.ID, bob, "love")
	require.NoError(t, err)

	given, err := f.svc.Reactions.Given(f.ctx, bob)
	require.NoError(t, err)
	assert.Len(t, given, 2)

	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, first.ID, alice))
	given, err = f.svc.Reactions.Given(f.ctx, bob)
	require.NoError(t, err)
	require.Len(t, given, 1)
	assert.Equal(t, second.ID, given[0].MessageID)
	assert.Equal(t, 1, f.store.Count()["reactions"])
}
