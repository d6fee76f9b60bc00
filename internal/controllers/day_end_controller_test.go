package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"busops/internal/config"
	"busops/internal/dayend"
	"busops/internal/events"
	"busops/internal/models"
)

type reportResponse struct {
	Report models.DayEnd `json:"report"`
}

type listResponse struct {
	Reports    []models.DayEnd `json:"reports"`
	Count      int64           `json:"count"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

func TestUpdateDayEndStatus(t *testing.T) {
	setupDB(t)
	pub := usePublisher(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	manager := createUser(t, models.RoleManager, "manager@example.com")
	bus := createBus(t, owner, "COLOMBO-01")
	assignBus(t, manager, bus)
	report := createDayEnd(t, bus, "2024-03-01", models.DayEndPending, 1000)
	token := tokenFor(t, manager)
	path := fmt.Sprintf("/api/day-ends/%d/status", report.ID)

	w := doJSON(t, r, http.MethodPatch, path, token, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp reportResponse
	decode(t, w, &resp)
	assert.Equal(t, models.DayEndApproved, resp.Report.Status)
	require.NotNil(t, resp.Report.ReviewedBy)
	assert.Equal(t, manager.ID, *resp.Report.ReviewedBy)
	assert.NotNil(t, resp.Report.ReviewedAt)
	bus0, ok := resp.Report.BusRef().Populated()
	require.True(t, ok, "bus should be populated")
	assert.Equal(t, "COLOMBO-01", bus0.BusNumber)

	published := pub.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeDayEndStatusChanged, published[0].Type)
	assert.Equal(t, report.ID, published[0].DayEndID)
	assert.Equal(t, owner.ID, published[0].OwnerID)

	t.Run("terminal status cannot change again", func(t *testing.T) {
		for _, target := range []string{"approved", "rejected", "pending"} {
			w := doJSON(t, r, http.MethodPatch, path, token, map[string]string{"status": target})
			assert.Equal(t, http.StatusConflict, w.Code, target)
		}
		assert.Len(t, pub.Events(), 1)
	})

	t.Run("unknown status", func(t *testing.T) {
		other := createDayEnd(t, bus, "2024-03-02", models.DayEndPending, 500)
		w := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/day-ends/%d/status", other.ID), token, map[string]string{"status": "closed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("report outside the manager's buses is not found", func(t *testing.T) {
		otherBus := createBus(t, owner, "KANDY-07")
		hidden := createDayEnd(t, otherBus, "2024-03-01", models.DayEndPending, 700)
		w := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/day-ends/%d/status", hidden.ID), token, map[string]string{"status": "rejected"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		var stored models.DayEnd
		require.NoError(t, config.DB.First(&stored, hidden.ID).Error)
		assert.Equal(t, models.DayEndPending, stored.Status)
	})
}

func TestListDayEnds_Pagination(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	admin := createUser(t, models.RoleSuperAdmin, "admin@example.com")
	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	bus := createBus(t, owner, "GALLE-02")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		createDayEnd(t, bus, start.AddDate(0, 0, i).Format(models.DateLayout), models.DayEndPending, int64(100+i))
	}

	w := doJSON(t, r, http.MethodGet, "/api/day-ends?page=3&limit=10", tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp listResponse
	decode(t, w, &resp)
	assert.Equal(t, int64(25), resp.Count)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 3, resp.Page)
	assert.Len(t, resp.Reports, 5)
	// newest first, so the last page holds the earliest days
	assert.Equal(t, "2024-01-05", resp.Reports[0].Date.String())
	assert.Equal(t, "2024-01-01", resp.Reports[4].Date.String())

	t.Run("start date bound", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/day-ends?startDate=2024-01-20", tokenFor(t, admin), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp listResponse
		decode(t, w, &resp)
		assert.Equal(t, int64(6), resp.Count)
		assert.Equal(t, dayend.DefaultPageSize, resp.Limit)
	})

	t.Run("invalid date", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/day-ends?startDate=20-01-2024", tokenFor(t, admin), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListDayEnds_ScopedByRole(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	ownerA := createUser(t, models.RoleBusOwner, "a@example.com")
	ownerB := createUser(t, models.RoleBusOwner, "b@example.com")
	manager := createUser(t, models.RoleManager, "m@example.com")
	busA := createBus(t, ownerA, "A-1")
	busB := createBus(t, ownerB, "B-1")
	assignBus(t, manager, busB)
	createDayEnd(t, busA, "2024-02-01", models.DayEndPending, 100)
	createDayEnd(t, busA, "2024-02-02", models.DayEndPending, 100)
	createDayEnd(t, busB, "2024-02-01", models.DayEndApproved, 300)

	tests := []struct {
		name  string
		user  models.User
		count int64
	}{
		{"owner sees own buses", ownerA, 2},
		{"other owner", ownerB, 1},
		{"manager sees assigned buses", manager, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodGet, "/api/day-ends", tokenFor(t, tt.user), nil)
			require.Equal(t, http.StatusOK, w.Code)
			var resp listResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.count, resp.Count)
		})
	}

	t.Run("unassigned manager sees nothing", func(t *testing.T) {
		idle := createUser(t, models.RoleManager, "idle@example.com")
		w := doJSON(t, r, http.MethodGet, "/api/day-ends", tokenFor(t, idle), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp listResponse
		decode(t, w, &resp)
		assert.Zero(t, resp.Count)
		assert.Empty(t, resp.Reports)
	})
}

func TestDayEndSummary_CoversWholeDataset(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	admin := createUser(t, models.RoleSuperAdmin, "admin@example.com")
	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	bus := createBus(t, owner, "NEG-3")
	createDayEnd(t, bus, "2024-04-01", models.DayEndApproved, 1000)
	createDayEnd(t, bus, "2024-04-02", models.DayEndApproved, 2500)
	createDayEnd(t, bus, "2024-04-03", models.DayEndPending, 750)

	w := doJSON(t, r, http.MethodGet, "/api/day-ends/summary?limit=1", tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Summary dayend.Summary `json:"summary"`
	}
	decode(t, w, &resp)
	assert.Equal(t, dayend.ScopeDataset, resp.Summary.Scope)
	assert.Equal(t, int64(3), resp.Summary.TotalReports)
	assert.Equal(t, int64(2), resp.Summary.ApprovedCount)
	assert.Equal(t, int64(1), resp.Summary.PendingCount)
	assert.True(t, decimal.NewFromInt(4250).Equal(resp.Summary.TotalRevenueSum), resp.Summary.TotalRevenueSum.String())
}

func TestCreateDayEnd(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	bus := createBus(t, owner, "MTR-9")
	token := tokenFor(t, owner)

	body := map[string]interface{}{
		"busId": bus.ID,
		"date":  "2024-05-10",
		"tripDetails": []map[string]interface{}{
			{"tripNumber": 1, "passengerCount": 40, "totalFare": 1200, "cashInHand": 1200},
			{"tripNumber": 2, "passengerCount": 35, "totalFare": 1050.5, "cashInHand": 1000},
		},
		"expenses": []map[string]interface{}{
			{"expenseName": "Fuel", "amount": 800},
		},
		"notes": "busy day",
	}
	w := doJSON(t, r, http.MethodPost, "/api/day-ends", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp reportResponse
	decode(t, w, &resp)
	assert.Equal(t, models.DayEndPending, resp.Report.Status)
	assert.Equal(t, "2250.5", resp.Report.TotalRevenue.String())
	assert.Equal(t, "800", resp.Report.TotalExpenses.String())
	assert.Equal(t, "1450.5", resp.Report.Profit.String())
	assert.Equal(t, owner.ID, resp.Report.ConductorID)
	assert.Len(t, resp.Report.TripDetails, 2)

	t.Run("second report for the same bus and day", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/day-ends", token, body)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("status in the payload is ignored", func(t *testing.T) {
		b := map[string]interface{}{"busId": bus.ID, "date": "2024-05-11", "status": "approved"}
		w := doJSON(t, r, http.MethodPost, "/api/day-ends", token, b)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp reportResponse
		decode(t, w, &resp)
		assert.Equal(t, models.DayEndPending, resp.Report.Status)
	})

	t.Run("inactive bus", func(t *testing.T) {
		require.NoError(t, config.DB.Model(&bus).Update("status", models.BusInactive).Error)
		b := map[string]interface{}{"busId": bus.ID, "date": "2024-05-12"}
		w := doJSON(t, r, http.MethodPost, "/api/day-ends", token, b)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteDayEnd_ManagerForbidden(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	manager := createUser(t, models.RoleManager, "manager@example.com")
	bus := createBus(t, owner, "X-1")
	assignBus(t, manager, bus)
	report := createDayEnd(t, bus, "2024-06-01", models.DayEndPending, 100)
	path := fmt.Sprintf("/api/day-ends/%d", report.ID)

	w := doJSON(t, r, http.MethodDelete, path, tokenFor(t, manager), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodDelete, path, tokenFor(t, owner), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var n int64
	config.DB.Model(&models.TripDetail{}).Where("day_end_id = ?", report.ID).Count(&n)
	assert.Zero(t, n)
}

func TestUpdateDayEnd(t *testing.T) {
	setupDB(t)
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	bus := createBus(t, owner, "UPD-1")
	token := tokenFor(t, owner)
	report := createDayEnd(t, bus, "2024-07-01", models.DayEndPending, 100)
	createDayEnd(t, bus, "2024-07-02", models.DayEndPending, 100)
	reviewed := createDayEnd(t, bus, "2024-07-03", models.DayEndApproved, 100)
	path := fmt.Sprintf("/api/day-ends/%d", report.ID)

	w := doJSON(t, r, http.MethodPut, path, token, map[string]interface{}{
		"tripDetails": []map[string]interface{}{
			{"tripNumber": 1, "passengerCount": 20, "totalFare": 600, "cashInHand": 600},
			{"tripNumber": 2, "passengerCount": 15, "totalFare": 400.5, "cashInHand": 400},
		},
		"expenses": []map[string]interface{}{{"expenseName": "Fuel", "amount": 200}},
		"notes":    "corrected",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp reportResponse
	decode(t, w, &resp)
	assert.Equal(t, "1000.5", resp.Report.TotalRevenue.String())
	assert.Equal(t, "200", resp.Report.TotalExpenses.String())
	assert.Equal(t, "800.5", resp.Report.Profit.String())
	assert.Equal(t, "corrected", resp.Report.Notes)
	assert.Equal(t, models.DayEndPending, resp.Report.Status)
	assert.Len(t, resp.Report.TripDetails, 2)
	assert.Len(t, resp.Report.Expenses, 1)

	var trips int64
	require.NoError(t, config.DB.Model(&models.TripDetail{}).Where("day_end_id = ?", report.ID).Count(&trips).Error)
	assert.Equal(t, int64(2), trips, "line items are replaced, not appended")

	stranger := createUser(t, models.RoleBusOwner, "stranger@example.com")
	tests := []struct {
		name  string
		token string
		path  string
		body  map[string]interface{}
		code  int
	}{
		{"reviewed report", token, fmt.Sprintf("/api/day-ends/%d", reviewed.ID), map[string]interface{}{"notes": "x"}, http.StatusConflict},
		{"bus change", token, path, map[string]interface{}{"busId": bus.ID + 100}, http.StatusBadRequest},
		{"date taken by another report", token, path, map[string]interface{}{"date": "2024-07-02"}, http.StatusConflict},
		{"negative fare", token, path, map[string]interface{}{"tripDetails": []map[string]interface{}{{"totalFare": -1}}}, http.StatusBadRequest},
		{"out of scope", tokenFor(t, stranger), path, map[string]interface{}{"notes": "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPut, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestExportDayEnds(t *testing.T) {
	setupDB(t)
	fixNow(t, time.Date(2024, 8, 5, 12, 0, 0, 0, time.UTC))
	r := newTestRouter()

	owner := createUser(t, models.RoleBusOwner, "owner@example.com")
	bus := createBus(t, owner, "XLS-1")
	createDayEnd(t, bus, "2024-08-01", models.DayEndApproved, 1000)
	createDayEnd(t, bus, "2024-08-02", models.DayEndPending, 500)
	createDayEnd(t, bus, "2024-07-20", models.DayEndPending, 700)
	other := createBus(t, createUser(t, models.RoleBusOwner, "other@example.com"), "XLS-2")
	createDayEnd(t, other, "2024-08-01", models.DayEndApproved, 9000)

	w := doJSON(t, r, http.MethodGet, "/api/day-ends/export?startDate=2024-08-01", tokenFor(t, owner), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "day-end-reports_2024-08-05.xlsx")

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Reports")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus the owner's two reports in range")
	assert.Equal(t, "2024-08-02", rows[1][0])
	assert.Equal(t, "XLS-1", rows[1][1])

	w = doJSON(t, r, http.MethodGet, "/api/day-ends/export?startDate=yesterday", tokenFor(t, owner), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
