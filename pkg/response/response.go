package response

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/finals-finder/internal/models"
	appErrors "github.com/noah-isme/finals-finder/pkg/errors"
)

// Envelope is the success body of the exams API. Data is always present, so an empty listing
// serialises as "data": [].
type Envelope struct {
	Data       interface{}            `json:"data"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// ErrorEnvelope is the failure body.
type ErrorEnvelope struct {
	Error *appErrors.Error `json:"error"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && len(meta[0]) > 0 {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(appErr.Status, ErrorEnvelope{Error: appErr})
}
