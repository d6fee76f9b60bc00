package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busops/internal/config"
	"busops/internal/models"
)

type busResponse struct {
	Bus models.Bus `json:"bus"`
}

func TestCreateBus(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	admin := createUser(t, models.RoleSuperAdmin, "admin@example.com")
	owner := createUser(t, models.RoleBusOwner, "owner@example.com")

	t.Run("owner creates for themselves", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, owner), map[string]interface{}{
			"busNumber": " nb-101 ", "capacity": 54, "ownerId": admin.ID,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp busResponse
		decode(t, w, &resp)
		assert.Equal(t, "NB-101", resp.Bus.BusNumber)
		assert.Equal(t, owner.ID, resp.Bus.OwnerID)
		assert.Equal(t, models.BusActive, resp.Bus.Status)
	})

	t.Run("super-admin must name an owner", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, admin), map[string]interface{}{"busNumber": "NB-102"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, admin), map[string]interface{}{"busNumber": "NB-102", "ownerId": owner.ID})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("duplicate bus number", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, owner), map[string]interface{}{"busNumber": "NB-101"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("managers cannot create buses", func(t *testing.T) {
		manager := createUser(t, models.RoleManager, "manager@example.com")
		w := doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, manager), map[string]interface{}{"busNumber": "NB-103"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSetBusStatus_ToggleTwiceRestores(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	bus := createBus(t, owner, "HB-7")
	token := tokenFor(t, owner)
	path := fmt.Sprintf("/api/buses/%d/status", bus.ID)

	w := doJSON(t, r, http.MethodPatch, path, token, map[string]string{"status": models.BusInactive})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp busResponse
	decode(t, w, &resp)
	assert.Equal(t, models.BusInactive, resp.Bus.Status)

	w = doJSON(t, r, http.MethodPatch, path, token, map[string]string{"status": models.BusActive})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/buses/%d", bus.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, models.BusActive, resp.Bus.Status)

	t.Run("unknown status", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPatch, path, token, map[string]string{"status": "retired"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBusAccessByRole(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	stranger := createUser(t, models.RoleBusOwner, "stranger@example.com")
	manager := createUser(t, models.RoleManager, "manager@example.com")
	bus := createBus(t, owner, "RB-1")
	assignBus(t, manager, bus)
	path := fmt.Sprintf("/api/buses/%d", bus.ID)

	w := doJSON(t, r, http.MethodGet, path, tokenFor(t, stranger), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, path, tokenFor(t, manager), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// the manager passes the route guard only for reads
	w = doJSON(t, r, http.MethodPut, path, tokenFor(t, manager), map[string]interface{}{"capacity": 60})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPut, path, tokenFor(t, owner), map[string]interface{}{"capacity": 60, "busNumber": "RB-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, path, tokenFor(t, owner), map[string]interface{}{"capacity": 60})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp busResponse
	decode(t, w, &resp)
	assert.Equal(t, 60, resp.Bus.Capacity)

	w = doJSON(t, r, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteBus(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	token := tokenFor(t, owner)

	t.Run("referenced by a day-end report", func(t *testing.T) {
		bus := createBus(t, owner, "DB-1")
		createDayEnd(t, bus, "2024-01-15", models.DayEndApproved, 900)

		w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/buses/%d", bus.ID), token, nil)
		require.Equal(t, http.StatusConflict, w.Code)
		var resp map[string]interface{}
		decode(t, w, &resp)
		assert.Contains(t, resp["error"], "day-end reports")
	})

	t.Run("unreferenced", func(t *testing.T) {
		bus := createBus(t, owner, "DB-2")
		w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/buses/%d", bus.ID), token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/buses/%d", bus.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateBus(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	admin := createUser(t, models.RoleSuperAdmin, "admin@example.com")
	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	other := createUser(t, models.RoleBusOwner, "other@example.com")
	manager := createUser(t, models.RoleManager, "manager@example.com")
	bus := createBus(t, owner, "UB-1")
	assignBus(t, manager, bus)

	ownRoute := createRoute(t, r, tokenFor(t, owner))
	foreignRoute := createRoute(t, r, tokenFor(t, other))
	path := fmt.Sprintf("/api/buses/%d", bus.ID)

	w := doJSON(t, r, http.MethodPut, path, tokenFor(t, owner), map[string]interface{}{
		"busNumber": " ub-1 ", "registrationNumber": " WP-1234 ", "capacity": 60, "routeId": ownRoute.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp busResponse
	decode(t, w, &resp)
	assert.Equal(t, "WP-1234", resp.Bus.RegistrationNumber)
	assert.Equal(t, 60, resp.Bus.Capacity)
	require.NotNil(t, resp.Bus.RouteID)
	assert.Equal(t, ownRoute.ID, *resp.Bus.RouteID)

	tests := []struct {
		name  string
		token string
		body  map[string]interface{}
		code  int
	}{
		{"bus number is fixed", tokenFor(t, owner), map[string]interface{}{"busNumber": "UB-2"}, http.StatusBadRequest},
		{"negative capacity", tokenFor(t, owner), map[string]interface{}{"capacity": -1}, http.StatusBadRequest},
		{"unknown status", tokenFor(t, owner), map[string]interface{}{"status": "parked"}, http.StatusBadRequest},
		{"another owner's route", tokenFor(t, owner), map[string]interface{}{"routeId": foreignRoute.ID}, http.StatusNotFound},
		{"missing route", tokenFor(t, owner), map[string]interface{}{"routeId": 9999}, http.StatusNotFound},
		{"admin moves the bus onto a foreign route", tokenFor(t, admin), map[string]interface{}{"routeId": foreignRoute.ID}, http.StatusBadRequest},
		{"manager", tokenFor(t, manager), map[string]interface{}{"capacity": 10}, http.StatusForbidden},
		{"stranger", tokenFor(t, other), map[string]interface{}{"capacity": 10}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPut, path, tt.token, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	var stored models.Bus
	require.NoError(t, config.DB.First(&stored, bus.ID).Error)
	require.NotNil(t, stored.RouteID)
	assert.Equal(t, ownRoute.ID, *stored.RouteID, "rejected edits leave the route alone")
	assert.Equal(t, 60, stored.Capacity)

	w = doJSON(t, r, http.MethodPut, path, tokenFor(t, owner), map[string]interface{}{"routeId": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.Nil(t, resp.Bus.RouteID)
}

func TestCreateBus_RouteMustBeOwned(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	other := createUser(t, models.RoleBusOwner, "other@example.com")
	foreignRoute := createRoute(t, r, tokenFor(t, other))

	w := doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, owner), map[string]interface{}{
		"busNumber": "CR-1", "routeId": foreignRoute.ID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	ownRoute := createRoute(t, r, tokenFor(t, owner))
	w = doJSON(t, r, http.MethodPost, "/api/buses", tokenFor(t, owner), map[string]interface{}{
		"busNumber": "CR-1", "routeId": ownRoute.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
