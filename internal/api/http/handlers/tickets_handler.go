package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-autoclose/internal/api/dto"
	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/repository"
	apperrors "github.com/spec-kit/ticket-autoclose/pkg/util"
)

// TicketsHandler serves read-only ticket lookups for operators.
type TicketsHandler struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets repository.TicketRepository, history repository.TicketHistoryRepository) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, history: history}
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	ticket, err := h.tickets.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return err
	}
	history, err := h.history.ListByTicket(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, history)})
}

func ticketDetail(ticket *domain.Ticket, history []domain.TicketHistory) dto.TicketDetailResponse {
	entries := make([]dto.TicketHistoryResponse, 0, len(history))
	for i := range history {
		entries = append(entries, dto.TicketHistoryResponse{
			ID:            history[i].ID,
			ChangedByType: history[i].ChangedByType,
			ChangedByID:   history[i].ChangedByID,
			ChangeType:    history[i].ChangeType,
			OldValue:      history[i].OldValue,
			NewValue:      history[i].NewValue,
			CreatedAt:     history[i].CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		ID:                ticket.ID,
		ExternalKey:       ticket.ExternalKey,
		CustomerAccountID: ticket.CustomerAccountID,
		Title:             ticket.Title,
		Status:            ticket.Status,
		LastActivityAt:    ticket.LastActivityAt,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		ClosedAt:          ticket.ClosedAt,
		History:           entries,
	}
}
