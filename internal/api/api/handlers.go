package api

import (
	"strconv"

	"github.com/wb-go/wbf/ginext"

	"eventhub/cmd/middleware"
	"eventhub/internal/dto"
	"eventhub/internal/guard"
	"eventhub/internal/service"
)

// principal is only called behind Authenticate.
func principal(c *ginext.Context) guard.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}

func bindJSON(c *ginext.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		dto.InvalidJSONError(c)
		return false
	}
	return true
}

// reply writes data with status ok, or the error mapped from its kind.
func reply(c *ginext.Context, data any, err error) {
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.SuccessResponse(c, data)
}

func created(c *ginext.Context, data any, err error) {
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, data)
}

func (r *Routers) Register(c *ginext.Context) {
	var req service.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := r.Service.RegisterUser(c.Request.Context(), req)
	created(c, u, err)
}

func (r *Routers) Login(c *ginext.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	err := r.Service.Login(c.Request.Context(), req.Email, req.Password)
	reply(c, map[string]string{"message": "verification code sent"}, err)
}

func (r *Routers) VerifyLoginCode(c *ginext.Context) {
	var req dto.VerifyCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := r.Service.VerifyLoginCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	token, err := r.Tokens.Sign(u)
	if err != nil {
		dto.InternalServerError(c)
		return
	}
	dto.SuccessResponse(c, dto.TokenResponse{Token: token, User: u})
}

func (r *Routers) ForgotPassword(c *ginext.Context) {
	var req dto.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := r.Service.RequestPasswordReset(c.Request.Context(), req.Email)
	reply(c, map[string]string{"message": "if the account exists, a reset code was sent"}, err)
}

func (r *Routers) ResetPassword(c *ginext.Context) {
	var req service.ResetPasswordInput
	if !bindJSON(c, &req) {
		return
	}
	err := r.Service.ResetPassword(c.Request.Context(), req)
	reply(c, map[string]string{"message": "password updated"}, err)
}

func (r *Routers) GetProfile(c *ginext.Context) {
	u, err := r.Service.GetProfile(c.Request.Context(), principal(c))
	reply(c, u, err)
}

func (r *Routers) UpdateProfile(c *ginext.Context) {
	var req service.ProfileInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := r.Service.UpdateProfile(c.Request.Context(), principal(c), req)
	reply(c, u, err)
}

func (r *Routers) CreateEvent(c *ginext.Context) {
	var req service.EventInput
	if !bindJSON(c, &req) {
		return
	}
	ev, err := r.Service.CreateEvent(c.Request.Context(), principal(c), req)
	created(c, ev, err)
}

func (r *Routers) ListEvents(c *ginext.Context) {
	events, err := r.Service.ListEvents(c.Request.Context(), principal(c))
	reply(c, events, err)
}

func (r *Routers) GetEvent(c *ginext.Context) {
	ev, err := r.Service.GetEvent(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, ev, err)
}

func (r *Routers) UpdateEvent(c *ginext.Context) {
	var req service.EventPatch
	if !bindJSON(c, &req) {
		return
	}
	ev, err := r.Service.UpdateEvent(c.Request.Context(), principal(c), c.Param("id"), req)
	reply(c, ev, err)
}

func (r *Routers) DeleteEvent(c *ginext.Context) {
	err := r.Service.DeleteEvent(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, map[string]string{"id": c.Param("id")}, err)
}

func (r *Routers) GetBudget(c *ginext.Context) {
	sum, err := r.Service.GetBudget(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, sum, err)
}

func (r *Routers) SetTotalBudget(c *ginext.Context) {
	var req dto.TotalBudgetRequest
	if !bindJSON(c, &req) {
		return
	}
	sum, err := r.Service.SetTotalBudget(c.Request.Context(), principal(c), c.Param("id"), req.TotalBudget)
	reply(c, sum, err)
}

func (r *Routers) AddExpense(c *ginext.Context) {
	var req service.ExpenseInput
	if !bindJSON(c, &req) {
		return
	}
	sum, err := r.Service.AddExpense(c.Request.Context(), principal(c), c.Param("id"), req)
	created(c, sum, err)
}

func (r *Routers) RemoveExpense(c *ginext.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		dto.FieldBadFormatError(c, "index")
		return
	}
	sum, err := r.Service.RemoveExpense(c.Request.Context(), principal(c), c.Param("id"), index)
	reply(c, sum, err)
}

func (r *Routers) AddGuest(c *ginext.Context) {
	var req service.GuestInput
	if !bindJSON(c, &req) {
		return
	}
	g, err := r.Service.AddGuest(c.Request.Context(), principal(c), c.Param("id"), req)
	created(c, g, err)
}

func (r *Routers) ListGuests(c *ginext.Context) {
	guests, err := r.Service.ListGuests(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, guests, err)
}

func (r *Routers) UpdateGuest(c *ginext.Context) {
	var req service.GuestPatch
	if !bindJSON(c, &req) {
		return
	}
	g, err := r.Service.UpdateGuest(c.Request.Context(), principal(c), c.Param("id"), req)
	reply(c, g, err)
}

func (r *Routers) RemoveGuest(c *ginext.Context) {
	err := r.Service.RemoveGuest(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, map[string]string{"id": c.Param("id")}, err)
}

func (r *Routers) SendInvitation(c *ginext.Context) {
	g, err := r.Service.SendInvitation(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, g, err)
}

func (r *Routers) ResendInvitation(c *ginext.Context) {
	g, err := r.Service.ResendInvitation(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, g, err)
}

func (r *Routers) GetInvitation(c *ginext.Context) {
	v, err := r.Service.GetInvitation(c.Request.Context(), c.Param("id"))
	reply(c, v, err)
}

func (r *Routers) RespondToInvitation(c *ginext.Context) {
	var req service.RSVPInput
	if !bindJSON(c, &req) {
		return
	}
	g, err := r.Service.RespondToInvitation(c.Request.Context(), c.Param("id"), req)
	reply(c, g, err)
}

func (r *Routers) ListMyInvitations(c *ginext.Context) {
	views, err := r.Service.ListMyInvitations(c.Request.Context(), principal(c))
	reply(c, views, err)
}
