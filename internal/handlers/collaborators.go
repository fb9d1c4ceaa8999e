package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardhub/boardhub/internal/services"
	"github.com/boardhub/boardhub/pkg/response"
)

// CollaboratorHandler serves board collaborator mutations.
type CollaboratorHandler struct {
	collaborators *services.CollaboratorService
}

// NewCollaboratorHandler constructs a CollaboratorHandler instance.
func NewCollaboratorHandler(collaborators *services.CollaboratorService) *CollaboratorHandler {
	return &CollaboratorHandler{collaborators: collaborators}
}

type createCollaboratorRequest struct {
	UserID string `json:"user_id" validate:"omitempty,uuid4"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// POST /api/boards/:id/collaborators
func (h *CollaboratorHandler) Create(c *gin.Context) {
	var req createCollaboratorRequest
	if !bindAndValidate(c, &req) {
		return
	}

	collab, err := h.collaborators.Create(requestContext(c), currentUserID(c), c.Param("id"), services.CollaboratorInput{
		UserID: req.UserID,
		Email:  req.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, collab)
}

// GET /api/collaborators/:id
func (h *CollaboratorHandler) Get(c *gin.Context) {
	collab, err := h.collaborators.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, collab)
}

// DELETE /api/collaborators/:id
func (h *CollaboratorHandler) Delete(c *gin.Context) {
	if err := h.collaborators.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
