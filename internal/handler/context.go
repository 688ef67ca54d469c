package handler

import (
	"github.com/gin-gonic/gin"

	"projectportal/internal/model"
)

// PrincipalKey is where the auth middleware stores the caller.
const PrincipalKey = "principal"

// principal returns the authenticated caller. Routes using it sit behind
// the auth middleware, so a missing value is a wiring bug.
func principal(c *gin.Context) model.Principal {
	return c.MustGet(PrincipalKey).(model.Principal)
}
