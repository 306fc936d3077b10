package middlewares

import (
	"errors"

	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse body rendered for every failed request
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler fiber error boundary: AppError and *fiber.Error keep their status,
// anything else is logged and answered with a generic 500
func ErrorHandler(c *fiber.Ctx, err error) error {
	if appErr := errprocess.As(err); appErr != nil {
		if appErr.Code >= fiber.StatusInternalServerError {
			logger.Log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(appErr.Code).JSON(ErrorResponse{Code: appErr.Code, Message: appErr.PublicMessage()})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Code: fe.Code, Message: fe.Message})
	}

	logger.Log.Error("unhandled error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Code:    fiber.StatusInternalServerError,
		Message: errprocess.InternalMessage,
	})
}
