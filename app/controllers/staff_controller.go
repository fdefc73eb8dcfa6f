package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/pkg/bind"
	"github.com/shashiranjanraj/orderdesk/pkg/ctx"
	"github.com/shashiranjanraj/orderdesk/pkg/validate"
)

type StaffController struct {
	auth *services.AuthService
}

func NewStaffController(auth *services.AuthService) *StaffController {
	return &StaffController{auth: auth}
}

// Login handles POST /api/staff/login. Every rejection, including a missing
// field, gets the same 401 so callers learn nothing about which part was
// wrong.
func (sc *StaffController) Login(c *ctx.Context) {
	var in services.LoginInput
	errs, err := bind.JSON(c.W, c.R, &in)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}
	if validate.HasErrors(errs) {
		c.Unauthorized(invalidCredentialsMessage)
		return
	}

	res, err := sc.auth.Login(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(res)
}

// Me handles GET /api/staff/me and echoes the token's claims.
func (sc *StaffController) Me(c *ctx.Context) {
	claims, ok := c.Claims()
	if !ok {
		c.Unauthorized("Unauthorized")
		return
	}
	c.Success(map[string]string{"staffId": claims.StaffID, "role": claims.Role})
}
