package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/vertice360/leadqual/internal/api/dto"
	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/session"
)

// SessionsHandler exposes the session read surface.
type SessionsHandler struct {
	store *session.Store
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(store *session.Store) *SessionsHandler {
	return &SessionsHandler{store: store}
}

// List GET /sessions. Supports ?status= filtering, newest first.
func (h *SessionsHandler) List(c *fiber.Ctx) error {
	statusFilter := domain.SessionStatus(c.Query("status"))
	sessions := h.store.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})

	items := make([]dto.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		if statusFilter != "" && sess.Status != statusFilter {
			continue
		}
		items = append(items, dto.NewSessionSummary(sess))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /sessions/:id.
func (h *SessionsHandler) Get(c *fiber.Ctx) error {
	sess, err := h.store.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionDetail(sess)})
}
