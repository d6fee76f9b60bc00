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

type createBusInput struct {
	BusNumber          string `json:"busNumber" binding:"required"`
	RegistrationNumber string `json:"registrationNumber"`
	Capacity           int    `json:"capacity" binding:"gte=0"`
	OwnerID            uint   `json:"ownerId"`
	RouteID            *uint  `json:"routeId"`
}

type updateBusInput struct {
	BusNumber          *string `json:"busNumber"`
	RegistrationNumber *string `json:"registrationNumber"`
	Capacity           *int    `json:"capacity"`
	RouteID            *uint   `json:"routeId"`
	Status             *string `json:"status"`
}

// ListBuses returns the buses in the caller's scope, optionally filtered by ?status=.
func ListBuses(c *gin.Context) {
	scope, err := loadBusScope(c)
	if err != nil {
		respondError(c, err)
		return
	}

	q := scope.apply(config.DB.Model(&models.Bus{}), "id")
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		if s != models.BusActive && s != models.BusInactive {
			respondError(c, invalid("status must be active or inactive"))
			return
		}
		q = q.Where("status = ?", s)
	}

	var buses []models.Bus
	if err := q.Order("bus_number").Find(&buses).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buses})
}

func GetBus(c *gin.Context) {
	bus, err := loadScopedBus(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// CreateBus registers a bus. Owners always create buses for themselves; a super-admin
// names the owner.
func CreateBus(c *gin.Context) {
	var input createBusInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	ownerID := middleware.CurrentUserID(c)
	if isSuperAdmin(c) {
		if input.OwnerID == 0 {
			respondError(c, invalid("ownerId is required"))
			return
		}
		var owner models.User
		if err := config.DB.Where("id = ? AND role = ?", input.OwnerID, models.RoleBusOwner).First(&owner).Error; err != nil {
			respondError(c, classifyDBError(err, "Bus owner"))
			return
		}
		ownerID = owner.ID
	}

	bus := models.Bus{
		BusNumber:          strings.ToUpper(strings.TrimSpace(input.BusNumber)),
		RegistrationNumber: strings.TrimSpace(input.RegistrationNumber),
		Capacity:           input.Capacity,
		OwnerID:            ownerID,
		RouteID:            input.RouteID,
		Status:             models.BusActive,
	}
	if bus.BusNumber == "" {
		respondError(c, invalid("busNumber is required"))
		return
	}
	if bus.RouteID != nil {
		if err := checkBusRoute(c, *bus.RouteID, ownerID); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := config.DB.Create(&bus).Error; err != nil {
		respondError(c, classifyDBError(err, "Bus"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bus": bus})
}

// UpdateBus applies a partial update. The bus number cannot change after creation.
func UpdateBus(c *gin.Context) {
	bus, err := loadWritableBus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input updateBusInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	if input.BusNumber != nil && !strings.EqualFold(strings.TrimSpace(*input.BusNumber), bus.BusNumber) {
		respondError(c, invalid("busNumber cannot be changed"))
		return
	}
	if input.RegistrationNumber != nil {
		bus.RegistrationNumber = strings.TrimSpace(*input.RegistrationNumber)
	}
	if input.Capacity != nil {
		if *input.Capacity < 0 {
			respondError(c, invalid("capacity must not be negative"))
			return
		}
		bus.Capacity = *input.Capacity
	}
	if input.RouteID != nil {
		bus.RouteID = nil
		if *input.RouteID != 0 {
			if err := checkBusRoute(c, *input.RouteID, bus.OwnerID); err != nil {
				respondError(c, err)
				return
			}
			bus.RouteID = input.RouteID
		}
	}
	if input.Status != nil {
		if err := validBusStatus(*input.Status); err != nil {
			respondError(c, err)
			return
		}
		bus.Status = *input.Status
	}

	if err := config.DB.Save(&bus).Error; err != nil {
		respondError(c, classifyDBError(err, "Bus"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// SetBusStatus flips a bus between active and inactive.
func SetBusStatus(c *gin.Context) {
	bus, err := loadWritableBus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var payload struct {
		Status string `json:"status" binding:"required"`
	}
	if err := bindJSON(c, &payload); err != nil {
		respondError(c, err)
		return
	}
	if err := validBusStatus(payload.Status); err != nil {
		respondError(c, err)
		return
	}

	if err := config.DB.Model(&bus).Update("status", payload.Status).Error; err != nil {
		respondError(c, err)
		return
	}
	bus.Status = payload.Status
	logrus.WithFields(logrus.Fields{"bus_id": bus.ID, "status": payload.Status}).Info("bus status changed")
	c.JSON(http.StatusOK, gin.H{"message": "Bus status updated", "bus": bus})
}

// DeleteBus removes a bus that no report, fee or expense refers to.
func DeleteBus(c *gin.Context) {
	bus, err := loadWritableBus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	err = ensureUnreferenced("Bus",
		refsTo("day-end reports", &models.DayEnd{}, "bus_id = ?", bus.ID),
		refsTo("monthly fees", &models.MonthlyFee{}, "bus_id = ?", bus.ID),
		refsTo("expense transactions", &models.ExpenseTransaction{}, "bus_id = ?", bus.ID),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM manager_buses WHERE bus_id = ?", bus.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Bus{}, bus.ID).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "Bus"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus deleted"})
}

// checkBusRoute accepts a route the caller may modify and that belongs to the bus owner.
func checkBusRoute(c *gin.Context, routeID, ownerID uint) error {
	route, err := routeForWrite(c, routeID)
	if err != nil {
		return err
	}
	if route.OwnerID != ownerID {
		return invalid("route belongs to another owner")
	}
	return nil
}

func validBusStatus(s string) error {
	if s != models.BusActive && s != models.BusInactive {
		return invalid("status must be active or inactive")
	}
	return nil
}

func loadScopedBus(c *gin.Context) (models.Bus, error) {
	var bus models.Bus
	id, err := parseID(c, "id")
	if err != nil {
		return bus, err
	}
	scope, err := loadBusScope(c)
	if err != nil {
		return bus, err
	}
	if !scope.allows(id) {
		return bus, NotFoundError{Resource: "Bus"}
	}
	if err := config.DB.First(&bus, id).Error; err != nil {
		return bus, classifyDBError(err, "Bus")
	}
	return bus, nil
}

// loadWritableBus is loadScopedBus for callers allowed to modify the bus: the
// super-admin and the owner. Managers only review.
func loadWritableBus(c *gin.Context) (models.Bus, error) {
	bus, err := loadScopedBus(c)
	if err != nil {
		return bus, err
	}
	if middleware.CurrentRole(c) == models.RoleManager {
		return bus, ForbiddenError{Msg: "Managers cannot modify buses"}
	}
	return bus, nil
}
