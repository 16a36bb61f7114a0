package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"flashvote/models"
	"flashvote/utils"
)

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// POST /signup
func (h *handler) signup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}

	u := models.User{Email: strings.ToLower(req.Email), Password: req.Password, Name: req.Name}
	if err := h.Users.Create(c.Request.Context(), &u); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "A user with this email already exists."})
			return
		}
		internalError(c, err, "Could not save user.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created successfully", "user": u})
}

// POST /login
func (h *handler) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}

	user, err := h.Users.ValidateCredentials(c.Request.Context(), strings.ToLower(req.Email), req.Password)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidCredentials) {
			internalError(c, err, "Could not authenticate user.")
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Could not authenticate user."})
		return
	}

	token, err := utils.GenerateToken(user.Email, user.ID)
	if err != nil {
		internalError(c, err, "Could not authenticate user.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful!", "token": token})
}
