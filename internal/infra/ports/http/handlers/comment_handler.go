package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fivepointers/pagerelay/internal/domain/models"
	"github.com/fivepointers/pagerelay/internal/infra/appctx"
	"github.com/fivepointers/pagerelay/internal/infra/ports/http/dto"
	"github.com/fivepointers/pagerelay/internal/usecase"
)

type CommentHandler struct {
	comments usecase.CommentUsecase
}

func NewCommentHandler(comments usecase.CommentUsecase) *CommentHandler {
	return &CommentHandler{comments: comments}
}

func (h *CommentHandler) Create(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req dto.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ComponentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "componentId is required"})
	}

	view, err := h.comments.AddComment(c.Request().Context(), c.Param("room"), models.Comment{
		ComponentID: req.ComponentID,
		Position:    req.Position,
		CreatedBy:   userID,
	})
	if err != nil {
		return commentError(c, err)
	}

	return c.JSON(http.StatusCreated, view)
}

func (h *CommentHandler) List(c echo.Context) error {
	componentID := c.QueryParam("componentId")
	if componentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "componentId is required"})
	}

	views, err := h.comments.ListForComponent(c.Request().Context(), c.Param("room"), componentID)
	if err != nil {
		return commentError(c, err)
	}

	if views == nil {
		views = []models.CommentView{}
	}

	return c.JSON(http.StatusOK, views)
}

func (h *CommentHandler) Reply(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req dto.CreateReplyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	err := h.comments.AddReply(c.Request().Context(), c.Param("room"), c.Param("id"), models.Reply{
		Author:    userID,
		Text:      req.Text,
		Timestamp: time.Now(),
	})
	if err != nil {
		return commentError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{"status": "replied"})
}

func (h *CommentHandler) ToggleResolve(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	resolved, err := h.comments.ToggleResolve(c.Request().Context(), c.Param("room"), c.Param("id"), userID)
	if err != nil {
		return commentError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"resolved": resolved})
}

func (h *CommentHandler) Delete(c echo.Context) error {
	if err := h.comments.DeleteComment(c.Request().Context(), c.Param("room"), c.Param("id")); err != nil {
		return commentError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func commentError(c echo.Context, err error) error {
	if errors.Is(err, usecase.ErrCommentNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
