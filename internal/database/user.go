package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateUsername is returned when registering a username that is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrEmptyCredentials is returned when username or password is empty.
	ErrEmptyCredentials = errors.New("username and password are required")
)

// hashCost is the bcrypt cost used for new password hashes.
var hashCost = bcrypt.DefaultCost

// dummyHash is compared against when a username is unknown,
// so that unknown users and wrong passwords take the same time.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("vaxboard-dummy-password"), hashCost)
	if err != nil {
		log.Error("failed to generate dummy hash", "error", err)
	}
	return hash
})

// User represents a registered user.
// The password is only ever stored as a bcrypt hash.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Exists reports whether a user with exactly this username is registered.
func (c *Client) Exists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		log.Error("failed to check if user exists", "error", err)
		return false, err
	}
	return count > 0, nil
}

// Register stores a new user with a hashed password.
// The unique index on username decides concurrent registrations, the loser gets ErrDuplicateUsername.
func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	exists, err := c.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := c.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		log.Error("failed to create user", "error", err)
		return nil, err
	}

	log.Info("registered user", "username", username)
	return &user, nil
}

// Authenticate reports whether username exists and password matches its stored hash.
// Unknown users and wrong passwords both return false without an error.
func (c *Client) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var user User
	err := c.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false, nil
	}
	if err != nil {
		log.Error("failed to get user by username", "error", err)
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// CountUsers returns the number of registered users.
func (c *Client) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
