package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"busops/internal/models"
)

var (
	// DB is the globally accessible database handle
	DB *gorm.DB
)

// InitDB opens the PostgreSQL connection, migrates the schema and seeds the first
// super-admin when one is configured.
func InitDB(s *Settings) error {
	db, err := gorm.Open(postgres.Open(s.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	if err := SeedSuperAdmin(db, s.SeedAdminEmail, s.SeedAdminPassword); err != nil {
		return fmt.Errorf("seeding super-admin failed: %w", err)
	}

	// Assign to global
	DB = db
	return nil
}

// Migrate creates or updates every table the API uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Route{},
		&models.Stop{},
		&models.Section{},
		&models.Bus{},
		&models.ExpenseType{},
		&models.ExpenseTransaction{},
		&models.DayEnd{},
		&models.TripDetail{},
		&models.DayEndExpense{},
		&models.MonthlyFee{},
	)
}

// SeedSuperAdmin creates a super-admin when none exists yet. Empty credentials skip it.
func SeedSuperAdmin(db *gorm.DB, email, password string) error {
	if email == "" {
		return nil
	}
	var existing models.User
	err := db.Where("role = ?", models.RoleSuperAdmin).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Super Admin",
		Email:    email,
		Password: string(hash),
		Role:     models.RoleSuperAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logrus.WithField("email", email).Info("seeded super-admin account")
	return nil
}

// GetDB returns the initialized DB handle
func GetDB() *gorm.DB {
	return DB
}

// CloseDB releases the underlying connection pool.
func CloseDB() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
