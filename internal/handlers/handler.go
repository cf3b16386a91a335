package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/claimwatch/claimwatch/internal/models"
	"github.com/claimwatch/claimwatch/internal/relay"
	"github.com/claimwatch/claimwatch/internal/services"
)

// Handler serves the claim CRUD endpoints and the fallback run-status
// endpoint that clients poll when their WebSocket is down.
type Handler struct {
	Claims   *services.ClaimService
	Registry *relay.Registry
	Log      *zap.Logger
}

func NewHandler(claims *services.ClaimService, registry *relay.Registry, log *zap.Logger) *Handler {
	return &Handler{Claims: claims, Registry: registry, Log: log}
}

type submitClaimRequest struct {
	Text string `json:"text"`
}

type voteRequest struct {
	UserID string `json:"userId"`
	Value  int    `json:"value"`
}

// StatusPage renders a small ops view of the relay: which runs are being
// watched and by how many subscribers.
func (h *Handler) StatusPage(c *fiber.Ctx) error {
	runIDs := h.Registry.ActiveRunIDs()
	type activeRun struct {
		RunID       string
		Subscribers int
	}
	runs := make([]activeRun, 0, len(runIDs))
	for _, id := range runIDs {
		runs = append(runs, activeRun{RunID: id, Subscribers: h.Registry.SubscriberCount(id)})
	}
	return c.Render("status", fiber.Map{
		"ActiveRuns": runs,
	})
}

func (h *Handler) SubmitClaim(c *fiber.Ctx) error {
	var req submitClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "claim text required"})
	}

	claim, err := h.Claims.SubmitClaim(c.Context(), req.Text)
	if err != nil {
		h.Log.Error("submit claim", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not submit claim"})
	}
	return c.Status(fiber.StatusCreated).JSON(claim)
}

func (h *Handler) ListClaims(c *fiber.Ctx) error {
	claims, err := h.Claims.ListClaims(c.QueryInt("limit", 50))
	if err != nil {
		h.Log.Error("list claims", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not list claims"})
	}
	return c.JSON(claims)
}

func (h *Handler) GetClaim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid claim id"})
	}
	claim, err := h.Claims.GetClaim(id)
	if err == gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "claim not found"})
	}
	if err != nil {
		h.Log.Error("get claim", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load claim"})
	}
	return c.JSON(claim)
}

// GetRun is the fallback-polling endpoint. It proxies the verifier's run
// state (or answers locally for demo runs) and refreshes the stored claim.
func (h *Handler) GetRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	run, err := h.Claims.GetRun(c.Context(), runID)
	if err != nil {
		h.Log.Warn("fetch run", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "verifier unavailable"})
	}
	return c.JSON(run)
}

func (h *Handler) SubmitVote(c *fiber.Ctx) error {
	runID := c.Params("id")
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId required"})
	}

	vote := models.Vote{UserID: req.UserID, Value: req.Value}
	if err := h.Claims.Vote(c.Context(), runID, vote); err != nil {
		h.Log.Warn("submit vote", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "verifier unavailable"})
	}
	return c.SendStatus(fiber.StatusAccepted)
}
