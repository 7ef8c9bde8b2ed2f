package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
)

type StatusHandler struct {
	registry memory.RoomRegistry
}

func NewStatusHandler(registry memory.RoomRegistry) *StatusHandler {
	return &StatusHandler{registry: registry}
}

type statusResponse struct {
	Status       string `json:"status"`
	Server       string `json:"server"`
	Rooms        int    `json:"rooms"`
	TotalClients int    `json:"totalClients"`
	Timestamp    string `json:"timestamp"`
}

func (h *StatusHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:       "running",
		Server:       "pagerelay",
		Rooms:        h.registry.RoomCount(),
		TotalClients: h.registry.TotalMembers(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}
