package api

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/apperr"
	"eventhub/internal/dto"
	"eventhub/internal/service"
)

func (r *Routers) ListVendors(c *ginext.Context) {
	list, err := r.Service.ListVendors(c.Request.Context(), c.Query("serviceType"), c.Query("location"))
	reply(c, list, err)
}

func (r *Routers) GetVendor(c *ginext.Context) {
	v, err := r.Service.GetVendor(c.Request.Context(), c.Param("id"))
	reply(c, v, err)
}

func (r *Routers) CreateVendorProfile(c *ginext.Context) {
	var req service.VendorProfileInput
	if !bindJSON(c, &req) {
		return
	}
	v, err := r.Service.CreateVendorProfile(c.Request.Context(), principal(c), req)
	created(c, v, err)
}

func (r *Routers) GetMyVendorProfile(c *ginext.Context) {
	v, err := r.Service.GetMyVendorProfile(c.Request.Context(), principal(c))
	reply(c, v, err)
}

func (r *Routers) UpdateVendorProfile(c *ginext.Context) {
	var req service.VendorProfileInput
	if !bindJSON(c, &req) {
		return
	}
	v, err := r.Service.UpdateVendorProfile(c.Request.Context(), principal(c), req)
	reply(c, v, err)
}

func (r *Routers) DeleteVendorProfile(c *ginext.Context) {
	err := r.Service.DeleteVendorProfile(c.Request.Context(), principal(c))
	reply(c, map[string]string{"message": "vendor profile deleted"}, err)
}

// AddPortfolioItem takes a multipart upload in the "file" field.
func (r *Routers) AddPortfolioItem(c *ginext.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, r.MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			dto.BadResponseError(c, string(apperr.KindValidation), "file is too large")
			return
		}
		dto.FieldBadFormatError(c, "file")
		return
	}
	f, err := header.Open()
	if err != nil {
		dto.FieldBadFormatError(c, "file")
		return
	}
	defer f.Close()

	v, err := r.Service.AddPortfolioItem(c.Request.Context(), principal(c), header.Filename, header.Header.Get("Content-Type"), f)
	created(c, v, err)
}

func (r *Routers) RemovePortfolioItem(c *ginext.Context) {
	var req dto.PortfolioItemRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := r.Service.RemovePortfolioItem(c.Request.Context(), principal(c), req.URL)
	reply(c, v, err)
}

func (r *Routers) HireVendor(c *ginext.Context) {
	var req service.HireInput
	if !bindJSON(c, &req) {
		return
	}
	d, err := r.Service.HireVendor(c.Request.Context(), principal(c), req)
	created(c, d, err)
}

func (r *Routers) GetAssignment(c *ginext.Context) {
	d, err := r.Service.GetAssignment(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, d, err)
}

func (r *Routers) ListMyAssignments(c *ginext.Context) {
	list, err := r.Service.ListMyAssignments(c.Request.Context(), principal(c))
	reply(c, list, err)
}

func (r *Routers) ListEventAssignments(c *ginext.Context) {
	list, err := r.Service.ListEventAssignments(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, list, err)
}

func (r *Routers) UpdateAssignmentStatus(c *ginext.Context) {
	var req dto.StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := r.Service.UpdateAssignmentStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
	reply(c, d, err)
}

func (r *Routers) EditAssignment(c *ginext.Context) {
	var req service.EditAssignmentInput
	if !bindJSON(c, &req) {
		return
	}
	d, err := r.Service.EditAssignment(c.Request.Context(), principal(c), c.Param("id"), req)
	reply(c, d, err)
}

func (r *Routers) CreatePaymentIntent(c *ginext.Context) {
	pi, err := r.Service.CreatePaymentIntent(c.Request.Context(), principal(c), c.Param("id"))
	created(c, pi, err)
}

func (r *Routers) ConfirmPayment(c *ginext.Context) {
	var req dto.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	pay, err := r.Service.ConfirmPayment(c.Request.Context(), principal(c), c.Param("id"), req.IntentID)
	reply(c, pay, err)
}

func (r *Routers) ListPayments(c *ginext.Context) {
	list, err := r.Service.ListPayments(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, list, err)
}

func (r *Routers) SendMessage(c *ginext.Context) {
	var req service.SendMessageInput
	if !bindJSON(c, &req) {
		return
	}
	m, err := r.Service.SendMessage(c.Request.Context(), principal(c), req)
	created(c, m, err)
}

func (r *Routers) ListConversations(c *ginext.Context) {
	list, err := r.Service.ListConversations(c.Request.Context(), principal(c))
	reply(c, list, err)
}

func (r *Routers) GetThread(c *ginext.Context) {
	thread, err := r.Service.GetThread(c.Request.Context(), principal(c), c.Param("userId"))
	reply(c, thread, err)
}

func (r *Routers) UnreadCount(c *ginext.Context) {
	n, err := r.Service.UnreadCount(c.Request.Context(), principal(c))
	reply(c, dto.CountResponse{Count: n}, err)
}

func (r *Routers) ListUsers(c *ginext.Context) {
	users, err := r.Service.ListUsers(c.Request.Context(), principal(c))
	reply(c, users, err)
}

func (r *Routers) SetUserBlocked(c *ginext.Context) {
	var req dto.BlockRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := r.Service.SetUserBlocked(c.Request.Context(), principal(c), c.Param("id"), req.Blocked)
	reply(c, u, err)
}

func (r *Routers) DeleteUser(c *ginext.Context) {
	err := r.Service.DeleteUser(c.Request.Context(), principal(c), c.Param("id"))
	reply(c, map[string]string{"id": c.Param("id")}, err)
}
