package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/docstate"
	"github.com/fivepointers/pagerelay/internal/domain/models"
)

// Comment data lives in three keyed collections inside the shared room
// document, all keyed by comment id. Resolve state is an append-only
// event log instead of a flag on the record, so concurrent toggles merge
// instead of losing one side.
const (
	nsComments = "comments"
	nsThreads  = "commentThreads"
	nsEvents   = "commentEvents"
)

var ErrCommentNotFound = errors.New("comment not found")

// CommentUsecase exposes CRUD over component-anchored comment threads.
// Mutations are replicated through the same relay path as document
// updates; there is no separate comment transport.
type CommentUsecase interface {
	AddComment(ctx context.Context, roomKey string, comment models.Comment) (models.CommentView, error)
	AddReply(ctx context.Context, roomKey, commentID string, reply models.Reply) error
	ToggleResolve(ctx context.Context, roomKey, commentID, actor string) (resolved bool, err error)
	DeleteComment(ctx context.Context, roomKey, commentID string) error

	// ListForComponent returns the unresolved comments anchored to the
	// component, oldest first. Pure read.
	ListForComponent(ctx context.Context, roomKey, componentID string) ([]models.CommentView, error)
}

type commentUsecase struct {
	engine docstate.Engine
	relay  RelayUsecase
}

func NewCommentUsecase(engine docstate.Engine, relay RelayUsecase) CommentUsecase {
	return &commentUsecase{
		engine: engine,
		relay:  relay,
	}
}

func (u *commentUsecase) AddComment(ctx context.Context, roomKey string, comment models.Comment) (models.CommentView, error) {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	raw, err := json.Marshal(comment)
	if err != nil {
		return models.CommentView{}, fmt.Errorf("encode comment: %w", err)
	}

	update, err := u.engine.MapSet(roomKey, nsComments, comment.ID, raw)
	if err != nil {
		return models.CommentView{}, fmt.Errorf("store comment: %w", err)
	}

	u.relay.BroadcastBinary(ctx, roomKey, update, uuid.Nil)

	return u.view(roomKey, comment), nil
}

func (u *commentUsecase) AddReply(ctx context.Context, roomKey, commentID string, reply models.Reply) error {
	if _, ok := u.engine.MapGet(roomKey, nsComments, commentID); !ok {
		return ErrCommentNotFound
	}

	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now()
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	update, err := u.engine.MapAppend(roomKey, nsThreads, commentID, raw)
	if err != nil {
		return fmt.Errorf("store reply: %w", err)
	}

	u.relay.BroadcastBinary(ctx, roomKey, update, uuid.Nil)

	return nil
}

func (u *commentUsecase) ToggleResolve(ctx context.Context, roomKey, commentID, actor string) (bool, error) {
	if _, ok := u.engine.MapGet(roomKey, nsComments, commentID); !ok {
		return false, ErrCommentNotFound
	}

	resolved, _, _ := u.resolveState(roomKey, commentID)

	action := models.ResolveActionResolve
	if resolved {
		action = models.ResolveActionReopen
	}

	event := models.ResolveEvent{
		Action: action,
		Actor:  actor,
		At:     time.Now(),
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("encode resolve event: %w", err)
	}

	update, err := u.engine.MapAppend(roomKey, nsEvents, commentID, raw)
	if err != nil {
		return false, fmt.Errorf("store resolve event: %w", err)
	}

	u.relay.BroadcastBinary(ctx, roomKey, update, uuid.Nil)

	return action == models.ResolveActionResolve, nil
}

func (u *commentUsecase) DeleteComment(ctx context.Context, roomKey, commentID string) error {
	if _, ok := u.engine.MapGet(roomKey, nsComments, commentID); !ok {
		return ErrCommentNotFound
	}

	// One update frame covering all three collections: observers never
	// see a thread outliving its comment.
	update, err := u.engine.MapDelete(roomKey, []string{nsComments, nsThreads, nsEvents}, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	u.relay.BroadcastBinary(ctx, roomKey, update, uuid.Nil)

	return nil
}

func (u *commentUsecase) ListForComponent(ctx context.Context, roomKey, componentID string) ([]models.CommentView, error) {
	var views []models.CommentView

	for _, raw := range u.engine.MapValues(roomKey, nsComments) {
		var comment models.Comment
		if err := json.Unmarshal(raw, &comment); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}

		if comment.ComponentID != componentID {
			continue
		}

		view := u.view(roomKey, comment)
		if view.Resolved {
			continue
		}

		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})

	return views, nil
}

func (u *commentUsecase) view(roomKey string, comment models.Comment) models.CommentView {
	view := models.CommentView{
		Comment: comment,
		Replies: []models.Reply{},
	}

	for _, raw := range u.engine.MapList(roomKey, nsThreads, comment.ID) {
		var reply models.Reply
		if err := json.Unmarshal(raw, &reply); err != nil {
			continue
		}
		view.Replies = append(view.Replies, reply)
	}

	resolved, actor, at := u.resolveState(roomKey, comment.ID)
	view.Resolved = resolved
	if resolved {
		view.ResolvedBy = actor
		view.ResolvedAt = &at
	}

	return view
}

// resolveState derives the current resolve flag as "latest event wins".
func (u *commentUsecase) resolveState(roomKey, commentID string) (bool, string, time.Time) {
	entries := u.engine.MapList(roomKey, nsEvents, commentID)
	if len(entries) == 0 {
		return false, "", time.Time{}
	}

	var latest models.ResolveEvent
	if err := json.Unmarshal(entries[len(entries)-1], &latest); err != nil {
		return false, "", time.Time{}
	}

	return latest.Action == models.ResolveActionResolve, latest.Actor, latest.At
}
