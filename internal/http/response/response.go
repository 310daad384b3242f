package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/topicpulse-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr derives status and code from the error's classification.
func RespondErr(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	if apiErr == nil {
		apiErr = apierr.New(http.StatusInternalServerError, "internal", nil)
	}
	_ = c.Error(err)
	RespondError(c, apiErr.Status, apiErr.Code, apiErr)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
