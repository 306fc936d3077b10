package handlers

import (
	"video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/domain"
	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// UploadHandler definition presigned upload routes
type UploadHandler struct {
	UseCase app.UploadUseCase
}

// NewUploadHandler create UploadHandler
func NewUploadHandler(uc app.UploadUseCase) *UploadHandler {
	return &UploadHandler{UseCase: uc}
}

// Initiate issue a presigned POST for a new upload
// @Summary Initiate a video upload
// @Tags Video
// @Accept json
// @Produce json
// @Param request body domain.InitiateReq true "file info"
// @Success 201 {object} domain.InitiateRes
// @Failure 400 {object} middlewares.ErrorResponse
// @Failure 429 {object} middlewares.ErrorResponse
// @Router /api/videos/initiate [post]
func (h *UploadHandler) Initiate(c *fiber.Ctx) error {
	var req domain.InitiateReq
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Validation("invalid request body")
	}

	ownerID, _ := middlewares.Caller(c)
	res, err := h.UseCase.Initiate(c.UserContext(), ownerID, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Complete client reports the upload finished
// @Summary Confirm an upload
// @Tags Video
// @Accept json
// @Produce json
// @Param request body domain.CompleteUploadReq true "storage key"
// @Success 202 {object} map[string]bool
// @Failure 400 {object} middlewares.ErrorResponse
// @Failure 403 {object} middlewares.ErrorResponse
// @Failure 404 {object} middlewares.ErrorResponse
// @Router /api/videos/complete [post]
func (h *UploadHandler) Complete(c *fiber.Ctx) error {
	var req domain.CompleteUploadReq
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Validation("invalid request body")
	}

	ownerID, _ := middlewares.Caller(c)
	if err := h.UseCase.Complete(c.UserContext(), ownerID, req.StorageKey); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

// ListPending the caller's pending uploads
// @Summary List my pending uploads
// @Tags Video
// @Produce json
// @Success 200 {array} domain.PendingJob
// @Router /api/videos/pending [get]
func (h *UploadHandler) ListPending(c *fiber.Ctx) error {
	ownerID, _ := middlewares.Caller(c)
	jobs, err := h.UseCase.ListPending(c.UserContext(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}
