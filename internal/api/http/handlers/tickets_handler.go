package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/sla"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	users   *service.UserService
	now     func() time.Time
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, userService *service.UserService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, users: userService, now: time.Now}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Tickets))
	for i := range page.Tickets {
		items = append(items, ticketResponse(&page.Tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{
		Data:   items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		CreatedBy:   user.ID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	ids := []string{ticket.CreatedBy}
	if ticket.AssignedTo != nil {
		ids = append(ids, *ticket.AssignedTo)
	}
	users, err := h.users.Lookup(c.UserContext(), ids...)
	if err != nil {
		return err
	}

	left := sla.Remaining(ticket.SLADeadline, h.now())
	detail := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		Creator:        userSummary(users, ticket.CreatedBy),
		SLARemaining: dto.SLARemaining{
			Overdue: left.Overdue,
			Hours:   left.Hours,
			Minutes: left.Minutes,
			Label:   left.String(),
		},
	}
	if ticket.AssignedTo != nil {
		detail.Assignee = userSummary(users, *ticket.AssignedTo)
	}
	return c.JSON(fiber.Map{"data": detail})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := service.TicketPatch{Status: req.Status, Priority: req.Priority}
	if req.AssignedTo.Set {
		patch.AssignedTo = &service.AssigneePatch{UserID: req.AssignedTo.Value}
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), c.Params("id"), patch, req.Version, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListComments GET /api/tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	comments, err := h.service.ListComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(comments))
	for _, comment := range comments {
		ids = append(ids, comment.UserID)
	}
	users, err := h.users.Lookup(c.UserContext(), ids...)
	if err != nil {
		return err
	}

	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i], userSummary(users, comments[i].UserID)))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddComment(c.UserContext(), c.Params("id"), req.Content, user.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment, summary(user))})
}

// ListHistory GET /api/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	users, err := h.users.Lookup(c.UserContext(), ids...)
	if err != nil {
		return err
	}

	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:        entry.ID,
			TicketID:  entry.TicketID,
			UserID:    entry.UserID,
			Action:    entry.Action,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			CreatedAt: entry.CreatedAt,
			User:      userSummary(users, entry.UserID),
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{Search: c.Query("search")}

	if val := strings.TrimSpace(c.Query("status")); val != "" {
		status := domain.TicketStatus(val)
		filter.Status = &status
	}
	if val := strings.TrimSpace(c.Query("priority")); val != "" {
		priority := domain.TicketPriority(val)
		filter.Priority = &priority
	}
	if val := strings.TrimSpace(c.Query("assigned_to")); val != "" {
		filter.AssignedTo = &val
	}
	if val := strings.TrimSpace(c.Query("breached")); val != "" {
		breached, err := strconv.ParseBool(val)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid breached", map[string]any{"value": val})
		}
		filter.Breached = &breached
	}

	var err error
	if filter.Limit, err = parseIntQuery(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseIntQuery(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseIntQuery(c *fiber.Ctx, key string) (int, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid "+key, map[string]any{"value": val})
	}
	return parsed, nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		CreatedBy:   ticket.CreatedBy,
		AssignedTo:  ticket.AssignedTo,
		SLADeadline: ticket.SLADeadline,
		IsBreached:  ticket.IsBreached,
		Version:     ticket.Version,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func commentResponse(comment *domain.Comment, author *dto.UserSummary) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		User:      author,
	}
}

func userSummary(users map[string]domain.User, id string) *dto.UserSummary {
	user, ok := users[id]
	if !ok {
		return nil
	}
	return summary(&user)
}

func summary(user *domain.User) *dto.UserSummary {
	return &dto.UserSummary{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  string(user.Role),
	}
}
