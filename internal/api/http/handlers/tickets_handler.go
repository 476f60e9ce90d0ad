package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/ticketd/internal/api/dto"
	"github.com/helpdesk-kit/ticketd/internal/auth"
	"github.com/helpdesk-kit/ticketd/internal/domain"
	"github.com/helpdesk-kit/ticketd/internal/repository"
	"github.com/helpdesk-kit/ticketd/internal/service"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// TicketsHandler exposes the lifecycle intents over HTTP. One endpoint per
// TicketService intent; the handler only parses and renders.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.UserContext(), principal, service.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.List(c.UserContext(), principal, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Update PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateFields(c.UserContext(), principal, c.Params("id"), service.UpdateFieldsInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Transition(c.UserContext(), principal, c.Params("id"), req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	ticket, err := h.service.Assign(c.UserContext(), principal, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	_, comment, err := h.service.AddComment(c.UserContext(), principal, c.Params("id"), req.Body, visibility)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if creator := c.Query("created_by"); creator != "" {
		filter.CreatedBy = &creator
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		Title:           ticket.Title,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		Category:        ticket.Category,
		CreatedBy:       ticket.CreatedBy,
		AssignedTo:      ticket.AssignedTo,
		CommentCount:    len(ticket.Comments),
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		StatusEnteredAt: ticket.StatusEnteredAt,
		Version:         ticket.Version,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(ticket.Comments))
	for i := range ticket.Comments {
		comments = append(comments, commentResponse(&ticket.Comments[i]))
	}
	return dto.TicketDetailResponse{
		ID:              ticket.ID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		Category:        ticket.Category,
		CreatedBy:       ticket.CreatedBy,
		AssignedTo:      ticket.AssignedTo,
		Comments:        comments,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		StatusEnteredAt: ticket.StatusEnteredAt,
		EscalatedAt:     ticket.EscalatedAt,
		ClosedAt:        ticket.ClosedAt,
		Version:         ticket.Version,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		AuthorID:   comment.AuthorID,
		Body:       comment.Body,
		Visibility: comment.Visibility,
		CreatedAt:  comment.CreatedAt,
	}
}
