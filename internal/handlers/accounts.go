package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/boardhub/boardhub/internal/services"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/response"
)

// AccountHandler serves team accounts, memberships and signup domains.
type AccountHandler struct {
	accounts    *services.AccountService
	invitations *services.InvitationService
}

// NewAccountHandler constructs an AccountHandler instance.
func NewAccountHandler(accounts *services.AccountService, invitations *services.InvitationService) *AccountHandler {
	return &AccountHandler{accounts: accounts, invitations: invitations}
}

type createAccountRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

type addAccountCollaboratorRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

type transferOwnershipRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

type emailDomainRequest struct {
	DomainName string `json:"domain_name" validate:"required,fqdn"`
}

type allowSignupRequest struct {
	AllowSignup *bool `json:"allow_signup" validate:"required"`
}

type checkSignupDomainRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/accounts
func (h *AccountHandler) Create(c *gin.Context) {
	var req createAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.accounts.CreateTeamAccount(requestContext(c), currentUserID(c), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, account)
}

// GET /api/accounts
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accounts.ListForUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"accounts": accounts})
}

// GET /api/accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.accounts.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, account)
}

// GET /api/accounts/:id/collaborators
func (h *AccountHandler) ListCollaborators(c *gin.Context) {
	collaborators, err := h.accounts.ListCollaborators(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"collaborators": collaborators})
}

// POST /api/accounts/:id/collaborators
func (h *AccountHandler) AddCollaborator(c *gin.Context) {
	var req addAccountCollaboratorRequest
	if !bindAndValidate(c, &req) {
		return
	}

	collab, err := h.accounts.AddCollaborator(requestContext(c), currentUserID(c), c.Param("id"), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, collab)
}

// DELETE /api/accounts/:id/collaborators/:userID
func (h *AccountHandler) RemoveCollaborator(c *gin.Context) {
	err := h.accounts.RemoveCollaborator(requestContext(c), currentUserID(c), c.Param("id"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// POST /api/accounts/:id/transfer-ownership
func (h *AccountHandler) TransferOwnership(c *gin.Context) {
	var req transferOwnershipRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.accounts.TransferOwnership(requestContext(c), currentUserID(c), c.Param("id"), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"transferred": true})
}

// POST /api/accounts/:id/domains
func (h *AccountHandler) AddEmailDomain(c *gin.Context) {
	var req emailDomainRequest
	if !bindAndValidate(c, &req) {
		return
	}

	domain, err := h.accounts.AddEmailDomain(requestContext(c), currentUserID(c), c.Param("id"), req.DomainName)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, domain)
}

// DELETE /api/accounts/:id/domains/:domain
func (h *AccountHandler) RemoveEmailDomain(c *gin.Context) {
	err := h.accounts.RemoveEmailDomain(requestContext(c), currentUserID(c), c.Param("id"), c.Param("domain"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// PUT /api/accounts/:id/signup
func (h *AccountHandler) SetAllowSignup(c *gin.Context) {
	var req allowSignupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.accounts.SetAllowSignup(requestContext(c), currentUserID(c), c.Param("id"), *req.AllowSignup)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"allow_signup": *req.AllowSignup})
}

// POST /api/signup/:slug/check
//
// Public endpoint used during signup. Every failure maps to the same
// ACCOUNT_DOMAIN_NOT_ALLOWED error so callers cannot probe account slugs.
func (h *AccountHandler) CheckSignupDomain(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		response.Error(c, appErrors.ErrDomainNotAllowed)
		return
	}

	var req checkSignupDomainRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.invitations.ValidateSignupDomain(requestContext(c), slug, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"account_id": account.ID,
		"slug":       account.Slug,
	})
}
