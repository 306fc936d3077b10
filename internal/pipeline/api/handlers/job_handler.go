package handlers

import (
	"video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/domain"
	errprocess "video_pipeline_service/pkg/err"

	"github.com/gofiber/fiber/v2"
)

// JobHandler definition transcoder facing routes
type JobHandler struct {
	UseCase app.DispatcherUseCase
}

// NewJobHandler create JobHandler
func NewJobHandler(uc app.DispatcherUseCase) *JobHandler {
	return &JobHandler{UseCase: uc}
}

// Next claim the oldest uploaded job
// @Summary Claim next job
// @Tags Jobs
// @Produce json
// @Param X-Transcoder-Secret header string true "shared secret"
// @Success 200 {object} domain.JobDescriptor
// @Success 204
// @Router /api/jobs/next [get]
func (h *JobHandler) Next(c *fiber.Ctx) error {
	job, err := h.UseCase.NextJob(c.UserContext())
	if err != nil {
		return err
	}
	if job == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(job)
}

// Complete worker reports a finished transcode
// @Summary Finalize a job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param X-Transcoder-Secret header string true "shared secret"
// @Param request body domain.CompleteJobReq true "result"
// @Success 200 {object} domain.CompleteJobRes
// @Failure 404 {object} middlewares.ErrorResponse
// @Failure 409 {object} middlewares.ErrorResponse
// @Router /api/jobs/complete [post]
func (h *JobHandler) Complete(c *fiber.Ctx) error {
	var req domain.CompleteJobReq
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Validation("invalid request body")
	}

	videoID, err := h.UseCase.CompleteJob(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(domain.CompleteJobRes{OK: true, VideoID: videoID})
}

// Fail worker reports a failed transcode
// @Summary Fail a job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param X-Transcoder-Secret header string true "shared secret"
// @Param request body domain.FailJobReq true "reason"
// @Success 200 {object} domain.FailJobRes
// @Failure 404 {object} middlewares.ErrorResponse
// @Router /api/jobs/fail [post]
func (h *JobHandler) Fail(c *fiber.Ctx) error {
	var req domain.FailJobReq
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Validation("invalid request body")
	}

	reason, err := h.UseCase.FailJob(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(domain.FailJobRes{OK: true, Reason: reason})
}
