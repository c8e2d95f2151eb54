package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errorBody is one entry of the error envelope: {success, errors:[{msg}]}.
type errorBody struct {
	Msg string `json:"msg"`
}

func fail(c *gin.Context, status int, msgs ...string) {
	body := make([]errorBody, 0, len(msgs))
	for _, m := range msgs {
		body = append(body, errorBody{Msg: m})
	}
	c.JSON(status, gin.H{"success": false, "errors": body})
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
