package handlers

import (
	"errors"
	"log"
	"net/http"

	"cohortboard/internal/middleware"
	"cohortboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path
	c.HTML(code, name, obj)
}

// Error helper
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

var kindStatus = map[services.ErrorKind]int{
	services.KindInvalidFormat:      http.StatusBadRequest,
	services.KindDuplicate:          http.StatusConflict,
	services.KindNotFound:           http.StatusNotFound,
	services.KindAlreadyVerified:    http.StatusConflict,
	services.KindUnauthorized:       http.StatusForbidden,
	services.KindUserCreationFailed: http.StatusInternalServerError,
	services.KindRegistrationFailed: http.StatusInternalServerError,
	services.KindStoreError:         http.StatusInternalServerError,
}

// respondError maps a service error to its status and JSON body.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   kind,
		"message": services.MessageOf(err),
	})
}

// respondBindError answers a failed ShouldBind with 400.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	msg := "요청 형식이 올바르지 않습니다."
	if errors.As(err, &verrs) {
		msg = middleware.ValidationMessage(verrs)
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   services.KindInvalidFormat,
		"message": msg,
	})
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// currentUserID is empty for anonymous requests.
func currentUserID(c *gin.Context) string {
	if u := middleware.CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}
