package dto

import "github.com/fivepointers/pagerelay/internal/domain/models"

type CreateCommentRequest struct {
	ComponentID string          `json:"componentId"`
	Position    models.Position `json:"position"`
}

type CreateReplyRequest struct {
	Text string `json:"text"`
}
