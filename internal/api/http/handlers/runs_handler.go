package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-autoclose/internal/api/dto"
	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/service"
	apperrors "github.com/spec-kit/ticket-autoclose/pkg/util"
)

const apiTrigger = "api"

// ClosureJob is the closure run entry point used by the admin API.
type ClosureJob interface {
	Run(ctx context.Context, trigger string) (domain.RunReport, error)
	LastReport() (domain.RunReport, bool)
}

// RunsHandler exposes manual triggering and the last run report.
type RunsHandler struct {
	job     ClosureJob
	baseCtx context.Context
}

// NewRunsHandler constructs handler. Runs started through the API derive
// from baseCtx, so cancelling it at shutdown stops them between tickets.
func NewRunsHandler(baseCtx context.Context, job ClosureJob) *RunsHandler {
	return &RunsHandler{job: job, baseCtx: baseCtx}
}

// Trigger POST /runs. Runs synchronously through the same path as cron.
// The request deadline does not cancel the run; the job's own timeout and
// shutdown do.
func (h *RunsHandler) Trigger(c *fiber.Ctx) error {
	report, err := h.job.Run(h.baseCtx, apiTrigger)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			return apperrors.NewConflict("closure run already in progress", nil)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": report, "warning": "run deadline reached"})
		}
		if errors.Is(err, context.Canceled) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": report, "warning": "run cancelled by shutdown"})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Last GET /runs/last. ?summary=true omits per-ticket lines.
func (h *RunsHandler) Last(c *fiber.Ctx) error {
	report, ok := h.job.LastReport()
	if !ok {
		return apperrors.NewNotFound("closure run", nil)
	}
	if c.QueryBool("summary") {
		return c.JSON(fiber.Map{"data": dto.NewRunSummary(report)})
	}
	return c.JSON(fiber.Map{"data": report})
}
