package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fivepointers/pagerelay/internal/infra/adapters/postgres/repository"
	"github.com/fivepointers/pagerelay/internal/infra/appctx"
	"github.com/fivepointers/pagerelay/internal/infra/ports/http/dto"
	"github.com/fivepointers/pagerelay/internal/usecase"
)

type VersionHandler struct {
	versions usecase.VersionUsecase
}

func NewVersionHandler(versions usecase.VersionUsecase) *VersionHandler {
	return &VersionHandler{versions: versions}
}

func (h *VersionHandler) Create(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req dto.CreateVersionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	meta, err := h.versions.CreateSnapshot(c.Request().Context(), c.Param("room"), req.Name, req.Description, userID)
	if err != nil {
		return versionError(c, err)
	}

	return c.JSON(http.StatusCreated, meta)
}

func (h *VersionHandler) List(c echo.Context) error {
	metas, err := h.versions.ListSnapshots(c.Request().Context(), c.Param("room"))
	if err != nil {
		return versionError(c, err)
	}

	return c.JSON(http.StatusOK, metas)
}

func (h *VersionHandler) Restore(c echo.Context) error {
	err := h.versions.RestoreVersion(c.Request().Context(), c.Param("room"), c.Param("id"))
	if err != nil {
		return versionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "restored"})
}

func (h *VersionHandler) Rename(c echo.Context) error {
	var req dto.RenameVersionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	if err := h.versions.RenameSnapshot(c.Request().Context(), c.Param("id"), req.Name); err != nil {
		return versionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "renamed"})
}

func (h *VersionHandler) Delete(c echo.Context) error {
	if err := h.versions.DeleteSnapshot(c.Request().Context(), c.Param("id")); err != nil {
		return versionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func versionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, usecase.ErrRoomBusy):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrSnapshotNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
