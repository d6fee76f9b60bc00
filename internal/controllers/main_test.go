package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"busops/internal/config"
	"busops/internal/events"
	"busops/internal/middleware"
	"busops/internal/models"
	"busops/internal/session"
)

var (
	anyRole   = []string{models.RoleSuperAdmin, models.RoleBusOwner, models.RoleManager}
	ownerRole = []string{models.RoleSuperAdmin, models.RoleBusOwner}
	adminRole = []string{models.RoleSuperAdmin}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupDB points config.DB at a fresh in-memory database for the test.
func setupDB(t *testing.T) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	prev := config.DB
	config.DB = db
	middleware.Configure("test-secret", time.Hour, session.NewMemoryRevoker())
	middleware.SetPrincipalLookup(LookupPrincipal)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		config.DB = prev
		middleware.SetPrincipalLookup(nil)
	})
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	api := r.Group("/api")
	api.GET("/health", Health)
	rr := func(roles []string) gin.HandlerFunc { return middleware.RequireRoles(roles...) }

	auth := api.Group("/auth")
	auth.POST("/signup", SignupUser)
	auth.POST("/login", LoginUser)
	auth.POST("/logout", middleware.RequireAuth(), LogoutUser)
	auth.GET("/me", middleware.RequireAuth(), CurrentUser)

	users := api.Group("/users", rr(adminRole))
	users.GET("", ListUsers)
	users.POST("", CreateUser)
	users.GET("/:id", GetUser)
	users.PUT("/:id", UpdateUser)
	users.PATCH("/:id/active", SetUserActive)
	users.DELETE("/:id", DeleteUser)

	buses := api.Group("/buses", rr(anyRole))
	buses.GET("", ListBuses)
	buses.GET("/:id", GetBus)
	buses.POST("", rr(ownerRole), CreateBus)
	buses.PUT("/:id", rr(ownerRole), UpdateBus)
	buses.PATCH("/:id/status", rr(ownerRole), SetBusStatus)
	buses.DELETE("/:id", rr(ownerRole), DeleteBus)

	types := api.Group("/expense-types", rr(anyRole))
	types.GET("", ListExpenseTypes)
	types.GET("/:id", GetExpenseType)
	types.POST("", rr(adminRole), CreateExpenseType)
	types.PUT("/:id", rr(adminRole), UpdateExpenseType)
	types.PATCH("/:id/active", rr(adminRole), SetExpenseTypeActive)
	types.DELETE("/:id", rr(adminRole), DeleteExpenseType)

	expenses := api.Group("/expense-transactions", rr(anyRole))
	expenses.GET("", ListExpenses)
	expenses.GET("/:id", GetExpense)
	expenses.POST("", CreateExpense)
	expenses.PUT("/:id", UpdateExpense)
	expenses.DELETE("/:id", DeleteExpense)

	de := api.Group("/day-ends", rr(anyRole))
	de.GET("", ListDayEnds)
	de.GET("/summary", DayEndSummary)
	de.GET("/export", ExportDayEnds)
	de.GET("/:id", GetDayEnd)
	de.POST("", CreateDayEnd)
	de.PUT("/:id", UpdateDayEnd)
	de.PATCH("/:id/status", UpdateDayEndStatus)
	de.DELETE("/:id", rr(ownerRole), DeleteDayEnd)

	fees := api.Group("/monthly-fees", rr(ownerRole))
	fees.GET("", ListMonthlyFees)
	fees.GET("/summary", MonthlyFeeSummary)
	fees.GET("/:id", GetMonthlyFee)
	fees.GET("/:id/invoice", FeeInvoice)
	fees.PATCH("/:id/pay", RecordFeePayment)
	fees.POST("", rr(adminRole), CreateMonthlyFee)
	fees.POST("/generate", rr(adminRole), GenerateMonthlyFees)
	fees.PUT("/:id", rr(adminRole), UpdateMonthlyFee)
	fees.DELETE("/:id", rr(adminRole), DeleteMonthlyFee)

	rt := api.Group("/routes", rr(anyRole))
	rt.GET("", ListRoutes)
	rt.GET("/:id", GetRoute)
	rt.POST("", rr(ownerRole), CreateRoute)
	rt.PUT("/:id", rr(ownerRole), UpdateRoute)
	rt.PATCH("/:id/active", rr(ownerRole), SetRouteActive)
	rt.DELETE("/:id", rr(ownerRole), DeleteRoute)
	rt.POST("/:id/stops", rr(ownerRole), AddStop)
	rt.PUT("/:id/stops", rr(ownerRole), ReplaceStops)

	stops := api.Group("/stops", rr(anyRole))
	stops.GET("", ListStops)
	stops.GET("/:stopId", GetStop)
	stops.PUT("/:stopId", rr(ownerRole), UpdateStop)
	stops.PATCH("/:stopId/active", rr(ownerRole), SetStopActive)
	stops.DELETE("/:stopId", rr(ownerRole), DeleteStop)
	stops.POST("/:stopId/sections", rr(ownerRole), AddSection)

	sections := api.Group("/sections", rr(anyRole))
	sections.GET("", ListSections)
	sections.GET("/:sectionId", GetSection)
	sections.PUT("/:sectionId", rr(ownerRole), UpdateSection)
	sections.PATCH("/:sectionId/active", rr(ownerRole), SetSectionActive)
	sections.DELETE("/:sectionId", rr(ownerRole), DeleteSection)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := middleware.GenerateToken(u.ID, u.Role)
	require.NoError(t, err)
	return tok
}

func createUser(t *testing.T, role, email string) models.User {
	t.Helper()
	u := models.User{Name: strings.Split(email, "@")[0], Email: email, Password: "x", Role: role, IsActive: true}
	require.NoError(t, config.DB.Create(&u).Error)
	return u
}

func createBus(t *testing.T, owner models.User, number string) models.Bus {
	t.Helper()
	b := models.Bus{BusNumber: number, OwnerID: owner.ID, Status: models.BusActive, Capacity: 50}
	require.NoError(t, config.DB.Create(&b).Error)
	return b
}

func assignBus(t *testing.T, manager models.User, bus models.Bus) {
	t.Helper()
	require.NoError(t, config.DB.Model(&manager).Association("AssignedBuses").Append(&bus))
}

func createDayEnd(t *testing.T, bus models.Bus, date, status string, revenue int64) models.DayEnd {
	t.Helper()
	d, err := models.ParseDate(date)
	require.NoError(t, err)
	rev := decimal.NewFromInt(revenue)
	r := models.DayEnd{
		BusID:        bus.ID,
		Date:         d,
		Status:       status,
		TotalRevenue: rev,
		Profit:       rev,
		TripDetails:  []models.TripDetail{{TripNumber: 1, PassengerCount: 10, TotalFare: rev}},
	}
	require.NoError(t, config.DB.Create(&r).Error)
	return r
}

// recordingPublisher keeps published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func usePublisher(t *testing.T) *recordingPublisher {
	t.Helper()
	p := &recordingPublisher{}
	SetPublisher(p)
	t.Cleanup(func() { SetPublisher(nil) })
	return p
}

func fixNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func setupExpenseType(et *models.ExpenseType) error {
	return config.DB.Create(et).Error
}
