package dto

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/apperr"
	"eventhub/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type TokenResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type StatusRequest struct {
	Status model.AssignmentStatus `json:"status" binding:"required"`
}

type TotalBudgetRequest struct {
	TotalBudget int64 `json:"totalBudget"`
}

type BlockRequest struct {
	Blocked bool `json:"blocked"`
}

type ConfirmPaymentRequest struct {
	IntentID string `json:"intentId" binding:"required"`
}

type PortfolioItemRequest struct {
	URL string `json:"url" binding:"required"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type PaymentResponse struct {
	Payment model.Payment `json:"payment"`
	Created bool          `json:"created"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorWithStatus(c *ginext.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorWithStatus(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorWithStatus(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func InvalidJSONError(c *ginext.Context) {
	BadResponseError(c, FieldIncorrect, "Invalid JSON format")
}

// AppError writes err with the status of its kind. Server errors never leak
// their message.
func AppError(c *ginext.Context, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind == apperr.KindServer {
		InternalServerError(c)
		return
	}
	ErrorWithStatus(c, e.Status(), string(e.Kind), e.Message)
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
