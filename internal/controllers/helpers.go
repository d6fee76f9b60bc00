package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/events"
	"busops/internal/models"
)

var (
	// now is swapped in tests that depend on the calendar.
	now = time.Now

	publisher events.Publisher = events.Discard{}

	// fieldValidator checks values that are normalized after binding.
	fieldValidator = validator.New()
)

// SetPublisher wires the destinations for day-end review events.
func SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Discard{}
	}
	publisher = p
}

func parseID(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, invalid("invalid %s", name)
	}
	return uint(n), nil
}

// bindJSON binds the body and reports binding failures as validation errors.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return invalid("Invalid input: %s", err.Error())
	}
	return nil
}

// activeFilter applies ?active=true|false to a query on a boolean is_active column.
// Inactive records stay listed by default so they can be re-activated.
func activeFilter(c *gin.Context, q *gorm.DB, column string) (*gorm.DB, error) {
	v := strings.TrimSpace(c.Query("active"))
	if v == "" {
		return q, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, invalid("active must be true or false")
	}
	return q.Where(column+" = ?", b), nil
}

// countRefs counts rows of model matching the condition.
func countRefs(model interface{}, query string, args ...interface{}) (int64, error) {
	var n int64
	err := config.DB.Model(model).Where(query, args...).Count(&n).Error
	return n, err
}

// ensureUnreferenced returns a ConflictError naming the first dependent table with rows.
func ensureUnreferenced(resource string, checks ...refCheck) error {
	for _, rc := range checks {
		n, err := countRefs(rc.model, rc.query, rc.args...)
		if err != nil {
			return err
		}
		if n > 0 {
			return ConflictError{Msg: resource + " cannot be deleted: it is still used by " + strconv.FormatInt(n, 10) + " " + rc.label}
		}
	}
	return nil
}

type refCheck struct {
	label string
	model interface{}
	query string
	args  []interface{}
}

func refsTo(label string, model interface{}, query string, args ...interface{}) refCheck {
	return refCheck{label: label, model: model, query: query, args: args}
}

// activeBus loads a bus in scope that new records may reference.
func activeBus(scope busScope, busID uint) (models.Bus, error) {
	var bus models.Bus
	if busID == 0 {
		return bus, invalid("busId is required")
	}
	if !scope.allows(busID) {
		return bus, NotFoundError{Resource: "Bus"}
	}
	if err := config.DB.First(&bus, busID).Error; err != nil {
		return bus, classifyDBError(err, "Bus")
	}
	if !bus.IsActive() {
		return bus, invalid("bus %s is inactive", bus.BusNumber)
	}
	return bus, nil
}

// setActive handles PATCH {"isActive": bool} for models with an is_active column and
// replies with the reloaded record.
func setActive(c *gin.Context, model interface{}, id uint) {
	var payload struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := bindJSON(c, &payload); err != nil {
		respondError(c, err)
		return
	}
	if err := config.DB.Model(model).Where("id = ?", id).Update("is_active", *payload.IsActive).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := config.DB.First(model, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "data": model})
}
