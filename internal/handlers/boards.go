package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardhub/boardhub/internal/services"
	"github.com/boardhub/boardhub/pkg/response"
)

// BoardHandler serves board CRUD and board collaborator listings.
type BoardHandler struct {
	boards *services.BoardService
}

// NewBoardHandler constructs a BoardHandler instance.
func NewBoardHandler(boards *services.BoardService) *BoardHandler {
	return &BoardHandler{boards: boards}
}

type createBoardRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid4"`
	Name      string `json:"name" validate:"required,min=1,max=128"`
	IsShared  *bool  `json:"is_shared"`
}

type updateBoardRequest struct {
	Name     string `json:"name" validate:"omitempty,min=1,max=128"`
	IsShared *bool  `json:"is_shared"`
}

// POST /api/boards
func (h *BoardHandler) Create(c *gin.Context) {
	var req createBoardRequest
	if !bindAndValidate(c, &req) {
		return
	}

	board, err := h.boards.Create(requestContext(c), currentUserID(c), req.AccountID, services.BoardInput{
		Name:     req.Name,
		IsShared: req.IsShared,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, board)
}

// GET /api/boards
func (h *BoardHandler) List(c *gin.Context) {
	boards, err := h.boards.ListVisible(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"boards": boards})
}

// GET /api/boards/:id
func (h *BoardHandler) Get(c *gin.Context) {
	board, err := h.boards.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, board)
}

// PUT /api/boards/:id
func (h *BoardHandler) Update(c *gin.Context) {
	var req updateBoardRequest
	if !bindAndValidate(c, &req) {
		return
	}

	board, err := h.boards.Update(requestContext(c), currentUserID(c), c.Param("id"), services.BoardInput{
		Name:     req.Name,
		IsShared: req.IsShared,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, board)
}

// DELETE /api/boards/:id
func (h *BoardHandler) Delete(c *gin.Context) {
	if err := h.boards.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/boards/:id/collaborators
func (h *BoardHandler) ListCollaborators(c *gin.Context) {
	collaborators, err := h.boards.ListCollaborators(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"collaborators": collaborators})
}
