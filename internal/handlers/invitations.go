package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardhub/boardhub/internal/services"
	"github.com/boardhub/boardhub/pkg/response"
)

// InvitationHandler serves account invitations and the signup waitlist.
type InvitationHandler struct {
	invitations *services.InvitationService
}

// NewInvitationHandler constructs an InvitationHandler instance.
func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type inviteUserRequest struct {
	Email               string  `json:"email" validate:"required,email"`
	AccountID           string  `json:"account_id" validate:"required,uuid4"`
	BoardCollaboratorID *string `json:"board_collaborator_id" validate:"omitempty,uuid4"`
}

type signupInterestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	var req inviteUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invitations.InviteUser(requestContext(c), currentUserID(c), services.InviteInput{
		Email:               req.Email,
		AccountID:           req.AccountID,
		BoardCollaboratorID: req.BoardCollaboratorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{
		"invite":  result.Invite,
		"created": result.Created,
	})
}

// GET /api/accounts/:id/invitations
func (h *InvitationHandler) ListForAccount(c *gin.Context) {
	invites, err := h.invitations.ListForAccount(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitations": invites})
}

// DELETE /api/invitations/:id
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if err := h.invitations.RevokeInvite(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// POST /api/signup-requests
//
// Public endpoint; repeat submissions are harmless.
func (h *InvitationHandler) RegisterSignupInterest(c *gin.Context) {
	var req signupInterestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.invitations.RegisterSignupInterest(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"email": request.Email})
}
