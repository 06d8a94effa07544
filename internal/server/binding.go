package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// invalidBody is implemented by request types that name their own message
// for bodies that fail before field validation, such as malformed JSON.
type invalidBody interface {
	invalidMessage() string
}

func (createRoomRequest) invalidMessage() string { return "invalid room settings" }
func (joinRequest) invalidMessage() string       { return "invalid name" }
func (freePromptRequest) invalidMessage() string { return "invalid prompt" }
func (pageRequest) invalidMessage() string       { return "invalid page" }

// bindJSON decodes and validates the body. The first failing field is
// reported by its json name.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeMessage(c, http.StatusBadRequest, bodyErrorMessage(err, req))
		return false
	}
	return true
}

func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		writeMessage(c, http.StatusNotFound, "not found")
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeMessage(c, http.StatusBadRequest, "invalid query")
		return false
	}
	return true
}

func bodyErrorMessage(err error, req any) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldMessage(verrs[0])
	}
	if body, ok := req.(invalidBody); ok {
		return body.invalidMessage()
	}
	return "invalid request"
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be %s or fewer", field, fe.Param())
	}
	if check, ok := textChecks[fe.Tag()]; ok {
		value, _ := fe.Value().(string)
		if _, err := check(value); err != nil {
			return err.Error()
		}
	}
	return field + " is invalid"
}
