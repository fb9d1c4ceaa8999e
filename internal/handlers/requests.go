package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardhub/boardhub/internal/services"
	"github.com/boardhub/boardhub/pkg/response"
)

// RequestHandler serves board join requests and their moderation.
type RequestHandler struct {
	requests *services.RequestService
}

// NewRequestHandler constructs a RequestHandler instance.
func NewRequestHandler(requests *services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// POST /api/boards/:id/requests
func (h *RequestHandler) Create(c *gin.Context) {
	request, err := h.requests.Create(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, request)
}

// GET /api/boards/:id/requests
func (h *RequestHandler) ListForBoard(c *gin.Context) {
	requests, err := h.requests.ListForBoard(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"requests": requests})
}

// POST /api/requests/:id/accept
func (h *RequestHandler) Accept(c *gin.Context) {
	request, err := h.requests.Accept(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, request)
}

// POST /api/requests/:id/reject
func (h *RequestHandler) Reject(c *gin.Context) {
	request, err := h.requests.Reject(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, request)
}
