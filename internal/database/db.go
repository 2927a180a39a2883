package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/alexgavs/eyeson-go/internal/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the simulator database and migrates its schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows one writer; the async worker and the handlers share this pool.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&models.SimCard{},
		&models.ProvisioningJob{},
		&models.ProvisioningJobAction{},
		&models.APIUser{},
		&models.APISession{},
		&models.SystemSetting{},
	)
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	// Normalize legacy status values to match swagger enums.
	db.Model(&models.SimCard{}).Where("status = ?", "Active").Update("status", string(models.StatusActivated))
	db.Model(&models.SimCard{}).Where("status = ?", "Pre-Active").Update("status", string(models.StatusPreActivated))

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SeedAPIUser creates or updates the account allowed to call the simulated API.
// An empty username leaves the table alone, which keeps the simulator open to any
// non-empty credentials.
func SeedAPIUser(db *gorm.DB, username, password string) error {
	if username == "" {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash API password: %w", err)
	}

	var user models.APIUser
	err = db.Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.APIUser{Username: username, PasswordHash: string(hashedPassword)}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		log.Printf("Database seeded with API user %q", username)
	case err != nil:
		return err
	default:
		if err := db.Model(&user).Update("password_hash", string(hashedPassword)).Error; err != nil {
			return err
		}
		log.Printf("API user %q password refreshed from config", username)
	}
	return nil
}

// CheckAPICredentials validates a username/password pair. When no API user
// exists, any non-empty pair is accepted.
func CheckAPICredentials(db *gorm.DB, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.APIUser{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return true, nil
	}

	var user models.APIUser
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}
