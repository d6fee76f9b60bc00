package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/middleware"
	"busops/internal/models"
)

// ListUsers returns every account, optionally filtered by ?role= and ?active=.
func ListUsers(c *gin.Context) {
	q := config.DB.Model(&models.User{})
	if r := c.Query("role"); r != "" {
		role, ok := models.NormalizeRole(r)
		if !ok {
			respondError(c, invalid("unknown role %q", r))
			return
		}
		q = q.Where("role = ?", role)
	}
	q, err := activeFilter(c, q, "is_active")
	if err != nil {
		respondError(c, err)
		return
	}

	var users []models.User
	if err := q.Preload("AssignedBuses").Order("name").Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

func GetUser(c *gin.Context) {
	user, err := loadUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateUser lets a super-admin create any role. Managers may be given buses up front.
func CreateUser(c *gin.Context) {
	var input struct {
		Name           string `json:"name" binding:"required"`
		Email          string `json:"email" binding:"required"`
		Password       string `json:"password" binding:"required,min=8"`
		Phone          string `json:"phone"`
		Role           string `json:"role" binding:"required"`
		AssignedBusIDs []uint `json:"assignedBusIds"`
		IsActive       *bool  `json:"isActive"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	role, ok := models.NormalizeRole(input.Role)
	if !ok {
		respondError(c, invalid("unknown role %q", input.Role))
		return
	}
	if len(input.AssignedBusIDs) > 0 && role != models.RoleManager {
		respondError(c, invalid("only managers can be assigned buses"))
		return
	}
	email, err := normalizedEmail(input.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user := models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hashed,
		Phone:    input.Phone,
		Role:     role,
		IsActive: true,
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return classifyDBError(err, "User")
		}
		// a false default is skipped on insert
		if input.IsActive != nil && !*input.IsActive {
			if err := tx.Model(&user).Update("is_active", false).Error; err != nil {
				return err
			}
			user.IsActive = false
		}
		return assignBuses(tx, &user, input.AssignedBusIDs)
	})
	if err != nil {
		if _, ok := err.(ConflictError); ok {
			err = ConflictError{Msg: "email already in use"}
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// UpdateUser changes profile fields, role, password or a manager's bus assignments.
func UpdateUser(c *gin.Context) {
	user, err := loadUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var input struct {
		Name           *string `json:"name"`
		Email          *string `json:"email"`
		Password       *string `json:"password"`
		Phone          *string `json:"phone"`
		Role           *string `json:"role"`
		IsActive       *bool   `json:"isActive"`
		AssignedBusIDs *[]uint `json:"assignedBusIds"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	self := user.ID == middleware.CurrentUserID(c)
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		if user.Email, err = normalizedEmail(*input.Email); err != nil {
			respondError(c, err)
			return
		}
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			respondError(c, invalid("password must be at least 8 characters"))
			return
		}
		if user.Password, err = hashPassword(*input.Password); err != nil {
			respondError(c, err)
			return
		}
	}
	if input.Role != nil {
		role, ok := models.NormalizeRole(*input.Role)
		if !ok {
			respondError(c, invalid("unknown role %q", *input.Role))
			return
		}
		if self && role != user.Role {
			respondError(c, ForbiddenError{Msg: "You cannot change your own role"})
			return
		}
		user.Role = role
	}
	if input.IsActive != nil {
		if self && !*input.IsActive {
			respondError(c, ForbiddenError{Msg: "You cannot deactivate your own account"})
			return
		}
		user.IsActive = *input.IsActive
	}
	if input.AssignedBusIDs != nil && user.Role != models.RoleManager && len(*input.AssignedBusIDs) > 0 {
		respondError(c, invalid("only managers can be assigned buses"))
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("AssignedBuses").Save(&user).Error; err != nil {
			return classifyDBError(err, "User")
		}
		if user.Role != models.RoleManager {
			return tx.Model(&user).Association("AssignedBuses").Clear()
		}
		if input.AssignedBusIDs != nil {
			return assignBuses(tx, &user, *input.AssignedBusIDs)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	config.DB.Preload("AssignedBuses").First(&user, user.ID)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func SetUserActive(c *gin.Context) {
	user, err := loadUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.ID == middleware.CurrentUserID(c) {
		respondError(c, ForbiddenError{Msg: "You cannot deactivate your own account"})
		return
	}
	setActive(c, &models.User{}, user.ID)
}

// DeleteUser removes an account nothing else depends on.
func DeleteUser(c *gin.Context) {
	user, err := loadUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.ID == middleware.CurrentUserID(c) {
		respondError(c, ForbiddenError{Msg: "You cannot delete your own account"})
		return
	}
	err = ensureUnreferenced("User",
		refsTo("buses", &models.Bus{}, "owner_id = ?", user.ID),
		refsTo("routes", &models.Route{}, "owner_id = ?", user.ID),
		refsTo("day-end reports", &models.DayEnd{}, "conductor_id = ?", user.ID),
		refsTo("monthly fees", &models.MonthlyFee{}, "owner_id = ?", user.ID),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Association("AssignedBuses").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.User{}, user.ID).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "User"))
		return
	}
	logrus.WithField("user_id", user.ID).Info("user deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// assignBuses replaces a manager's bus assignments; every id must exist.
func assignBuses(tx *gorm.DB, user *models.User, busIDs []uint) error {
	var buses []models.Bus
	if len(busIDs) > 0 {
		if err := tx.Where("id IN ?", busIDs).Find(&buses).Error; err != nil {
			return err
		}
		if len(buses) != len(uniqueIDs(busIDs)) {
			return invalid("assignedBusIds contains unknown buses")
		}
	}
	if err := tx.Model(user).Association("AssignedBuses").Replace(buses); err != nil {
		return err
	}
	user.AssignedBuses = buses
	return nil
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func loadUser(c *gin.Context) (models.User, error) {
	var user models.User
	id, err := parseID(c, "id")
	if err != nil {
		return user, err
	}
	if err := config.DB.Preload("AssignedBuses").First(&user, id).Error; err != nil {
		return user, classifyDBError(err, "User")
	}
	return user, nil
}
