package handlers

import (
	"video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/domain"
	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/middlewares"
	t_token "video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

// VideoHandler definition finalized video routes
type VideoHandler struct {
	UseCase app.VideoUseCase
}

// NewVideoHandler create VideoHandler
func NewVideoHandler(uc app.VideoUseCase) *VideoHandler {
	return &VideoHandler{UseCase: uc}
}

func caller(c *fiber.Ctx) domain.Caller {
	id, role := middlewares.Caller(c)
	return domain.Caller{ID: id, IsAdmin: t_token.RoleType(role) == t_token.RoleAdmin}
}

// Get video metadata
// @Summary Get a video
// @Tags Video
// @Produce json
// @Param id path string true "video id"
// @Success 200 {object} domain.Video
// @Failure 401 {object} middlewares.ErrorResponse
// @Failure 403 {object} middlewares.ErrorResponse
// @Failure 404 {object} middlewares.ErrorResponse
// @Router /api/videos/{id} [get]
func (h *VideoHandler) Get(c *fiber.Ctx) error {
	video, err := h.UseCase.Get(c.UserContext(), c.Params("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(video)
}

// Stream signed url for playback
// @Summary Get a playback url
// @Tags Video
// @Produce json
// @Param id path string true "video id"
// @Success 200 {object} domain.StreamURLRes
// @Router /api/videos/{id}/stream [get]
func (h *VideoHandler) Stream(c *fiber.Ctx) error {
	res, err := h.UseCase.StreamURL(c.UserContext(), c.Params("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Update owner or admin partial update
// @Summary Update a video
// @Tags Video
// @Accept json
// @Produce json
// @Param id path string true "video id"
// @Param request body domain.UpdateVideoReq true "fields"
// @Success 200 {object} domain.Video
// @Router /api/videos/{id} [put]
func (h *VideoHandler) Update(c *fiber.Ctx) error {
	var req domain.UpdateVideoReq
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Validation("invalid request body")
	}

	video, err := h.UseCase.Update(c.UserContext(), c.Params("id"), caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(video)
}

// Delete owner or admin
// @Summary Delete a video
// @Tags Video
// @Param id path string true "video id"
// @Success 204
// @Router /api/videos/{id} [delete]
func (h *VideoHandler) Delete(c *fiber.Ctx) error {
	if err := h.UseCase.Delete(c.UserContext(), c.Params("id"), caller(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
