package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"safehaven-service/internal/services"
	"safehaven-service/internal/transport/httpdto"
	safehaven_errors "safehaven-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AccountHandler struct {
	service *services.AccountService
}

func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) Create(c *gin.Context) {
	var req httpdto.CreateSafeHavenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	sh, err := h.service.Create(c.Request.Context(), req.Reference, req.OwnerName, req.OwnerEmail)
	if err != nil {
		if errors.Is(err, safehaven_errors.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, httpdto.NewErrorResponse("reference already exists", "DUPLICATE_REFERENCE"))
			return
		}
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromSafeHaven(sh)))
}

func (h *AccountHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}

	sh, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, safehaven_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("safe haven not found", "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSafeHaven(sh)))
}

func (h *AccountHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, total, err := h.service.List(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListSafeHavensResponse{
		Items: httpdto.FromSafeHavenSlice(items),
		Total: total,
	}))
}

func (h *AccountHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.UpdateSafeHavenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	sh, err := h.service.Update(c.Request.Context(), id, req.OwnerName, req.OwnerEmail)
	if err != nil {
		if errors.Is(err, safehaven_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("safe haven not found", "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSafeHaven(sh)))
}

func (h *AccountHandler) Suspend(c *gin.Context) {
	h.setStatus(c, h.service.Suspend)
}

func (h *AccountHandler) Activate(c *gin.Context) {
	h.setStatus(c, h.service.Activate)
}

func (h *AccountHandler) setStatus(c *gin.Context, fn func(ctx context.Context, reference string) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}

	sh, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, safehaven_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("safe haven not found", "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	if err := fn(c.Request.Context(), sh.Reference); err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	updated, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSafeHaven(updated)))
}
