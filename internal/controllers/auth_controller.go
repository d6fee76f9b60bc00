package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/middleware"
	"busops/internal/models"
)

type signupInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

// SignupUser registers a bus owner. Managers and admins are created by a super-admin.
func SignupUser(c *gin.Context) {
	var input signupInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	email, err := normalizedEmail(input.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hashedPassword,
		Phone:    input.Phone,
		Role:     models.RoleBusOwner,
		IsActive: true,
	}
	if err := config.DB.Create(&user).Error; err != nil {
		if cerr := classifyDBError(err, "User"); errors.As(cerr, new(ConflictError)) {
			respondError(c, ConflictError{Msg: "email already in use"})
			return
		}
		respondError(c, err)
		return
	}

	issueSession(c, http.StatusCreated, user)
}

func LoginUser(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &body); err != nil {
		respondError(c, err)
		return
	}
	email, err := normalizedEmail(body.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	var user models.User
	if err := config.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or invalid credentials"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is deactivated"})
		return
	}

	issueSession(c, http.StatusOK, user)
}

// LogoutUser revokes the token used for this request and clears the auth cookie.
func LogoutUser(c *gin.Context) {
	jti, exp := middleware.CurrentToken(c)
	if jti != "" {
		if err := middleware.Revoker().Revoke(c.Request.Context(), jti, exp); err != nil {
			respondError(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// CurrentUser returns the authenticated principal with the buses it may access.
func CurrentUser(c *gin.Context) {
	var user models.User
	if err := config.DB.Preload("AssignedBuses").First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		respondError(c, classifyDBError(err, "User"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "home": homePath(user.Role)})
}

func issueSession(c *gin.Context, status int, user models.User) {
	token, err := middleware.GenerateToken(user.ID, user.Role)
	if err != nil {
		logrus.WithError(err).Error("could not generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, token, 0, "/", "", false, true)
	c.JSON(status, gin.H{
		"token": token,
		"user":  user,
		"home":  homePath(user.Role),
	})
}

// homePath is the dashboard section a role lands on after login.
func homePath(role string) string {
	switch role {
	case models.RoleSuperAdmin:
		return "/dashboard/super-admin"
	case models.RoleBusOwner:
		return "/dashboard/bus-owner"
	case models.RoleManager:
		return "/dashboard/manager"
	}
	return "/login"
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizedEmail lowercases and trims an address, then checks its shape.
func normalizedEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if err := fieldValidator.Var(email, "required,email"); err != nil {
		return "", invalid("email must be a valid address")
	}
	return email, nil
}

// LookupPrincipal reports the stored role and active flag of a token's user.
func LookupPrincipal(ctx context.Context, userID uint) (middleware.Principal, bool, error) {
	var user models.User
	err := config.DB.WithContext(ctx).Select("id", "role", "is_active").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.Principal{}, false, nil
	}
	if err != nil {
		return middleware.Principal{}, false, err
	}
	return middleware.Principal{Role: user.Role, Active: user.IsActive}, true, nil
}
