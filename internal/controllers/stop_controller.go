package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/middleware"
	"busops/internal/models"
)

// ListStops returns the stops on routes visible to the caller, in route order.
// Supports ?routeId= and ?active=.
func ListStops(c *gin.Context) {
	routes, err := scopedRoutes(c)
	if err != nil {
		respondError(c, err)
		return
	}
	q := config.DB.Model(&models.Stop{}).Where("route_id IN (?)", routes.Select("id"))
	if s := c.Query("routeId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondError(c, invalid("routeId must be numeric"))
			return
		}
		q = q.Where("route_id = ?", id)
	}
	if q, err = activeFilter(c, q, "is_active"); err != nil {
		respondError(c, err)
		return
	}

	var stops []models.Stop
	if err := q.Preload("Sections").Order("route_id, seq").Find(&stops).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stops})
}

func GetStop(c *gin.Context) {
	id, err := parseID(c, "stopId")
	if err != nil {
		respondError(c, err)
		return
	}
	stops, err := scopedStops(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var stop models.Stop
	if err := stops.Preload("Sections").Where("id = ?", id).First(&stop).Error; err != nil {
		respondError(c, classifyDBError(err, "Stop"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop})
}

// ListSections returns fare sections of visible stops; ?stopId= and ?active= narrow it.
func ListSections(c *gin.Context) {
	stops, err := scopedStops(c)
	if err != nil {
		respondError(c, err)
		return
	}
	q := config.DB.Model(&models.Section{}).Where("stop_id IN (?)", stops.Select("id"))
	if s := c.Query("stopId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondError(c, invalid("stopId must be numeric"))
			return
		}
		q = q.Where("stop_id = ?", id)
	}
	if q, err = activeFilter(c, q, "is_active"); err != nil {
		respondError(c, err)
		return
	}

	var sections []models.Section
	if err := q.Order("stop_id, category").Find(&sections).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sections})
}

func GetSection(c *gin.Context) {
	id, err := parseID(c, "sectionId")
	if err != nil {
		respondError(c, err)
		return
	}
	stops, err := scopedStops(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var section models.Section
	if err := config.DB.Where("id = ? AND stop_id IN (?)", id, stops.Select("id")).First(&section).Error; err != nil {
		respondError(c, classifyDBError(err, "Section"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section})
}

// scopedStops selects the stops that belong to routes the caller can see.
func scopedStops(c *gin.Context) (*gorm.DB, error) {
	routes, err := scopedRoutes(c)
	if err != nil {
		return nil, err
	}
	return config.DB.Model(&models.Stop{}).Where("route_id IN (?)", routes.Select("id")), nil
}

// AddStop appends a stop to a route the caller owns.
func AddStop(c *gin.Context) {
	routeID, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	route, err := routeForWrite(c, routeID)
	if err != nil {
		respondError(c, err)
		return
	}

	var input stopInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	stop, err := input.toModel(route.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := config.DB.Create(&stop).Error; err != nil {
		respondError(c, classifyDBError(err, "Stop"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stop": stop})
}

func UpdateStop(c *gin.Context) {
	stop, err := loadWritableStop(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input struct {
		Name *string  `json:"name"`
		Seq  *int     `json:"seq"`
		Lat  *float64 `json:"lat"`
		Lng  *float64 `json:"lng"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			respondError(c, invalid("name must not be empty"))
			return
		}
		stop.Name = strings.TrimSpace(*input.Name)
	}
	if input.Seq != nil {
		stop.Seq = *input.Seq
	}
	if input.Lat != nil {
		stop.Lat = *input.Lat
	}
	if input.Lng != nil {
		stop.Lng = *input.Lng
	}
	if err := validCoordinates(stop.Lat, stop.Lng); err != nil {
		respondError(c, err)
		return
	}

	if err := config.DB.Omit("Sections").Save(&stop).Error; err != nil {
		respondError(c, classifyDBError(err, "Stop"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop})
}

func SetStopActive(c *gin.Context) {
	stop, err := loadWritableStop(c)
	if err != nil {
		respondError(c, err)
		return
	}
	setActive(c, &models.Stop{}, stop.ID)
}

// DeleteStop removes a stop together with its sections.
func DeleteStop(c *gin.Context) {
	stop, err := loadWritableStop(c)
	if err != nil {
		respondError(c, err)
		return
	}
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stop_id = ?", stop.ID).Delete(&models.Section{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Stop{}, stop.ID).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "Stop"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stop deleted"})
}

// AddSection attaches a fare section to a stop.
func AddSection(c *gin.Context) {
	stop, err := loadWritableStop(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input sectionInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if !input.Price.IsPositive() {
		respondError(c, invalid("price must be greater than zero"))
		return
	}

	section := models.Section{StopID: stop.ID, Category: strings.TrimSpace(input.Category), Price: input.Price, IsActive: true}
	if err := config.DB.Create(&section).Error; err != nil {
		respondError(c, classifyDBError(err, "Section"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"section": section})
}

func UpdateSection(c *gin.Context) {
	section, err := loadWritableSection(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input struct {
		Category *string          `json:"category"`
		Price    *decimal.Decimal `json:"price"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if input.Category != nil {
		if strings.TrimSpace(*input.Category) == "" {
			respondError(c, invalid("category must not be empty"))
			return
		}
		section.Category = strings.TrimSpace(*input.Category)
	}
	if input.Price != nil {
		if !input.Price.IsPositive() {
			respondError(c, invalid("price must be greater than zero"))
			return
		}
		section.Price = *input.Price
	}

	if err := config.DB.Save(&section).Error; err != nil {
		respondError(c, classifyDBError(err, "Section"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section})
}

func SetSectionActive(c *gin.Context) {
	section, err := loadWritableSection(c)
	if err != nil {
		respondError(c, err)
		return
	}
	setActive(c, &models.Section{}, section.ID)
}

func DeleteSection(c *gin.Context) {
	section, err := loadWritableSection(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := config.DB.Delete(&models.Section{}, section.ID).Error; err != nil {
		respondError(c, classifyDBError(err, "Section"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Section deleted"})
}

// loadWritableStop resolves :stopId and checks the caller owns its route.
func loadWritableStop(c *gin.Context) (models.Stop, error) {
	var stop models.Stop
	id, err := parseID(c, "stopId")
	if err != nil {
		return stop, err
	}
	if middleware.CurrentRole(c) == models.RoleManager {
		return stop, ForbiddenError{Msg: "Only the route owner can modify this route"}
	}
	if err := config.DB.Preload("Sections").First(&stop, id).Error; err != nil {
		return stop, classifyDBError(err, "Stop")
	}
	if _, err := routeForWrite(c, stop.RouteID); err != nil {
		if _, ok := err.(NotFoundError); ok {
			return stop, NotFoundError{Resource: "Stop"}
		}
		return stop, err
	}
	return stop, nil
}

func loadWritableSection(c *gin.Context) (models.Section, error) {
	var section models.Section
	id, err := parseID(c, "sectionId")
	if err != nil {
		return section, err
	}
	if middleware.CurrentRole(c) == models.RoleManager {
		return section, ForbiddenError{Msg: "Only the route owner can modify this route"}
	}
	if err := config.DB.First(&section, id).Error; err != nil {
		return section, classifyDBError(err, "Section")
	}
	var stop models.Stop
	if err := config.DB.First(&stop, section.StopID).Error; err != nil {
		return section, classifyDBError(err, "Section")
	}
	if _, err := routeForWrite(c, stop.RouteID); err != nil {
		if _, ok := err.(NotFoundError); ok {
			return section, NotFoundError{Resource: "Section"}
		}
		return section, err
	}
	return section, nil
}
