package controllers

import (
	"encoding/binary"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/middleware"
	"busops/internal/models"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// RouteResponse mirrors models.Route but carries Geometry as a GeoJSON string.
type RouteResponse struct {
	ID          uint          `json:"id"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OwnerID     uint          `json:"ownerId"`
	IsActive    bool          `json:"isActive"`
	Geometry    string        `json:"geometry"`
	Stops       []models.Stop `json:"stops"`
	Buses       []models.Bus  `json:"buses"`
}

func toRouteResponse(route models.Route) RouteResponse {
	jsonGeom, err := convertWKBToGeoJSON(route.Geometry)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("route geometry is not valid WKB")
	}
	stops := route.Stops
	if stops == nil {
		stops = []models.Stop{}
	}
	buses := route.Buses
	if buses == nil {
		buses = []models.Bus{}
	}
	return RouteResponse{
		ID:          route.ID,
		CreatedAt:   route.CreatedAt,
		UpdatedAt:   route.UpdatedAt,
		Name:        route.Name,
		Description: route.Description,
		OwnerID:     route.OwnerID,
		IsActive:    route.IsActive,
		Geometry:    jsonGeom,
		Stops:       stops,
		Buses:       buses,
	}
}

// parseAndConvertGeometry parses a GeoJSON LineString and returns WKB bytes.
func parseAndConvertGeometry(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	if _, ok := g.(*geom.LineString); !ok {
		return nil, errors.New("geometry must be a LineString")
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type sectionInput struct {
	Category string          `json:"category" binding:"required"`
	Price    decimal.Decimal `json:"price"`
}

type stopInput struct {
	Name     string         `json:"name" binding:"required"`
	Seq      int            `json:"seq"`
	Lat      float64        `json:"lat"`
	Lng      float64        `json:"lng"`
	Sections []sectionInput `json:"sections"`
}

func (in stopInput) toModel(routeID uint) (models.Stop, error) {
	stop := models.Stop{Name: in.Name, Seq: in.Seq, Lat: in.Lat, Lng: in.Lng, RouteID: routeID, IsActive: true}
	if err := validCoordinates(in.Lat, in.Lng); err != nil {
		return stop, err
	}
	for _, s := range in.Sections {
		if !s.Price.IsPositive() {
			return stop, invalid("section %q: price must be greater than zero", s.Category)
		}
		stop.Sections = append(stop.Sections, models.Section{Category: s.Category, Price: s.Price, IsActive: true})
	}
	return stop, nil
}

func validCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return invalid("coordinates out of range")
	}
	return nil
}

// CreateRoute creates a route with its GeoJSON LineString, stops and fare sections.
func CreateRoute(c *gin.Context) {
	var input struct {
		Name        string      `json:"name" binding:"required"`
		Description string      `json:"description"`
		OwnerID     uint        `json:"ownerId"`
		Geometry    string      `json:"geometry"`
		Stops       []stopInput `json:"stops" binding:"dive"`
	}
	if err := bindJSON(c, &input); err != nil {
		logrus.WithError(err).Warn("CreateRoute: invalid input payload")
		respondError(c, err)
		return
	}

	ownerID := middleware.CurrentUserID(c)
	if isSuperAdmin(c) {
		if input.OwnerID == 0 {
			respondError(c, invalid("ownerId is required"))
			return
		}
		ownerID = input.OwnerID
	}

	wkbGeom, err := parseAndConvertGeometry(input.Geometry)
	if err != nil {
		respondError(c, invalid("Invalid geometry: %s", err.Error()))
		return
	}

	route := models.Route{Name: input.Name, Description: input.Description, OwnerID: ownerID, Geometry: wkbGeom, IsActive: true}
	for _, s := range input.Stops {
		stop, err := s.toModel(0)
		if err != nil {
			respondError(c, err)
			return
		}
		route.Stops = append(route.Stops, stop)
	}

	// stops and their sections are created with the route in one transaction
	if err := config.DB.Create(&route).Error; err != nil {
		respondError(c, classifyDBError(err, "Route"))
		return
	}

	if err := preloadRoute(config.DB).First(&route, route.ID).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"route": toRouteResponse(route)})
}

// ReplaceStops swaps the stops (and their sections) of an existing route.
func ReplaceStops(c *gin.Context) {
	route, err := loadWritableRoute(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input struct {
		Stops []stopInput `json:"stops" binding:"required,dive"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	stops := make([]models.Stop, 0, len(input.Stops))
	for _, s := range input.Stops {
		stop, err := s.toModel(route.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		stops = append(stops, stop)
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stop_id IN (?)", tx.Model(&models.Stop{}).Select("id").Where("route_id = ?", route.ID)).
			Delete(&models.Section{}).Error; err != nil {
			return err
		}
		if err := tx.Where("route_id = ?", route.ID).Delete(&models.Stop{}).Error; err != nil {
			return err
		}
		if len(stops) == 0 {
			return nil
		}
		return tx.Create(&stops).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "Stop"))
		return
	}

	preloadRoute(config.DB).First(&route, route.ID)
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// ListRoutes returns the routes visible to the caller with stops, sections and buses.
func ListRoutes(c *gin.Context) {
	q, err := scopedRoutes(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if q, err = activeFilter(c, q, "is_active"); err != nil {
		respondError(c, err)
		return
	}

	var routes []models.Route
	if err := preloadRoute(q).Order("name").Find(&routes).Error; err != nil {
		respondError(c, err)
		return
	}

	routeResponses := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		routeResponses = append(routeResponses, toRouteResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"data": routeResponses})
}

func GetRoute(c *gin.Context) {
	route, err := loadScopedRoute(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// UpdateRoute handles updating route metadata and geometry.
func UpdateRoute(c *gin.Context) {
	route, err := loadWritableRoute(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input routeUpdate
	if err := bindJSON(c, &input); err != nil {
		logrus.WithError(err).Warn("UpdateRoute: Invalid input payload")
		respondError(c, err)
		return
	}
	if err := applyRouteUpdates(&route, &input); err != nil {
		respondError(c, err)
		return
	}

	if err := config.DB.Omit("Stops", "Buses").Save(&route).Error; err != nil {
		logrus.WithError(err).Error("UpdateRoute: Failed to save updated route")
		respondError(c, classifyDBError(err, "Route"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

type routeUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Geometry    *string `json:"geometry"`
	IsActive    *bool   `json:"isActive"`
}

// applyRouteUpdates updates the route fields based on the input.
func applyRouteUpdates(route *models.Route, input *routeUpdate) error {
	if input.Name != nil {
		if *input.Name == "" {
			return invalid("name must not be empty")
		}
		route.Name = *input.Name
	}
	if input.Description != nil {
		route.Description = *input.Description
	}
	if input.IsActive != nil {
		route.IsActive = *input.IsActive
	}
	if input.Geometry != nil {
		if *input.Geometry == "" {
			route.Geometry = nil
		} else {
			wkbGeom, err := parseAndConvertGeometry(*input.Geometry)
			if err != nil {
				return invalid("Invalid geometry: %s", err.Error())
			}
			route.Geometry = wkbGeom
		}
	}
	return nil
}

// SetRouteActive toggles a route's isActive flag.
func SetRouteActive(c *gin.Context) {
	route, err := loadWritableRoute(c)
	if err != nil {
		respondError(c, err)
		return
	}
	setActive(c, &models.Route{}, route.ID)
}

// DeleteRoute removes a route and its stops; buses on it are detached.
func DeleteRoute(c *gin.Context) {
	route, err := loadWritableRoute(c)
	if err != nil {
		respondError(c, err)
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Bus{}).Where("route_id = ?", route.ID).Update("route_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("stop_id IN (?)", tx.Model(&models.Stop{}).Select("id").Where("route_id = ?", route.ID)).
			Delete(&models.Section{}).Error; err != nil {
			return err
		}
		if err := tx.Where("route_id = ?", route.ID).Delete(&models.Stop{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Route{}, route.ID).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "Route"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully"})
}

func preloadRoute(q *gorm.DB) *gorm.DB {
	return q.Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Stops.Sections").
		Preload("Buses")
}

// scopedRoutes: super-admin sees all, owners their own, managers the routes of their buses.
func scopedRoutes(c *gin.Context) (*gorm.DB, error) {
	q := config.DB.Model(&models.Route{})
	switch middleware.CurrentRole(c) {
	case models.RoleSuperAdmin:
		return q, nil
	case models.RoleBusOwner:
		return q.Where("owner_id = ?", middleware.CurrentUserID(c)), nil
	case models.RoleManager:
		scope, err := loadBusScope(c)
		if err != nil {
			return nil, err
		}
		sub := scope.apply(config.DB.Model(&models.Bus{}).Select("route_id").Where("route_id IS NOT NULL"), "id")
		return q.Where("id IN (?)", sub), nil
	}
	return nil, ForbiddenError{Msg: "Access denied"}
}

func loadScopedRoute(c *gin.Context) (models.Route, error) {
	var route models.Route
	id, err := parseID(c, "id")
	if err != nil {
		return route, err
	}
	q, err := scopedRoutes(c)
	if err != nil {
		return route, err
	}
	if err := preloadRoute(q).Where("id = ?", id).First(&route).Error; err != nil {
		return route, classifyDBError(err, "Route")
	}
	return route, nil
}

func loadWritableRoute(c *gin.Context) (models.Route, error) {
	route, err := loadScopedRoute(c)
	if err != nil {
		return route, err
	}
	if middleware.CurrentRole(c) == models.RoleManager {
		return route, ForbiddenError{Msg: "Only the route owner can modify this route"}
	}
	return route, nil
}

// routeForWrite loads a route by id for a caller that is modifying its stops or sections.
func routeForWrite(c *gin.Context, routeID uint) (models.Route, error) {
	var route models.Route
	if middleware.CurrentRole(c) == models.RoleManager {
		return route, ForbiddenError{Msg: "Only the route owner can modify this route"}
	}
	if err := config.DB.First(&route, routeID).Error; err != nil {
		return route, classifyDBError(err, "Route")
	}
	if !isSuperAdmin(c) && route.OwnerID != middleware.CurrentUserID(c) {
		return route, NotFoundError{Resource: "Route"}
	}
	return route, nil
}
