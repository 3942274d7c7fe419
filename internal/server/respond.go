package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Every response is an envelope with a success flag. Domain failures are
// reported with status 200 and success false; malformed requests get 400,
// token problems 401 and storage failures 500.

func ok(c *gin.Context, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// refuse reports a domain failure.
func refuse(c *gin.Context, message string) {
	fail(c, http.StatusOK, message)
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Errorw("request failed", "op", op, "error", err, "requestID", c.GetString(requestIDKey))
	fail(c, http.StatusInternalServerError, "Ошибка базы данных. Попробуйте позже.")
}

const msgMissingFields = "Missing required fields"

// bindJSON decodes the body and keeps it for later binds, so the token
// middleware and the handler can both read it. Fields tagged
// binding:"required" that are absent or empty get a 400.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindBodyWith(dst, binding.JSON)
	if err == nil {
		return true
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		fail(c, http.StatusBadRequest, msgMissingFields)
		return false
	}
	fail(c, http.StatusBadRequest, "Invalid JSON")
	return false
}
