package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/pneumonia-api/internal/apperr"
)

// APIResponse is the envelope of every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
	State   string      `json:"state,omitempty"`
}

func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Message: "ok",
		Code:    http.StatusOK,
	})
}

func respondError(c *gin.Context, status int, message string, state string) {
	c.JSON(status, APIResponse{
		Success: false,
		Message: message,
		Code:    status,
		State:   state,
	})
}

// statusFor maps a failure class to an HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUpload, apperr.KindDecode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
