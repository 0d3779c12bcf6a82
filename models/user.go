package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// User is a seeded credential. There is no self-signup; the admin seeds
// staff accounts with the seed-admin command or the admin endpoint.
type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	Role      UserRole  `gorm:"type:enum('admin','staff');not null;default:'staff'" json:"role"`
	Enabled   *bool     `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

var ErrorInvalidCredentials = errors.New("invalid username or password")

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	if input.Username == "" {
		return nil, &utils.ValidationError{Field: "username", Reason: "must not be blank"}
	}
	if len(input.Password) < 6 {
		return nil, &utils.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	if input.Role == "" {
		input.Role = UserRoleStaff
	}
	if input.Role != UserRoleAdmin && input.Role != UserRoleStaff {
		return nil, &utils.ValidationError{Field: "role", Reason: "unknown role"}
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username: input.Username,
		Password: string(hashed),
		Name:     input.Name,
		Role:     input.Role,
		Enabled:  utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, &utils.ValidationError{Field: "username", Reason: "already taken"}
		}
		return nil, utils.NewPersistenceError(err)
	}
	return &user, nil
}

// LoginCheck verifies a credential and issues a signed token.
func LoginCheck(ctx context.Context, username string, password string) (string, *User, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, ErrorInvalidCredentials
		}
		return "", nil, utils.NewPersistenceError(err)
	}
	if user.Enabled != nil && !*user.Enabled {
		return "", nil, ErrorInvalidCredentials
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, ErrorInvalidCredentials
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}

func ListUsers(ctx context.Context) ([]*User, error) {
	return utils.FetchAllModels[User](ctx)
}

// SetUserEnabled disables or re-enables a credential without deleting its
// history attribution.
func SetUserEnabled(ctx context.Context, id int, enabled bool) (*User, error) {
	db := config.GetDB()
	var result *User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := utils.FetchModelTx[User](tx, id)
		if err != nil {
			return err
		}
		user.Enabled = &enabled
		if err := tx.Model(&User{}).Where("id = ?", id).
			Update("enabled", enabled).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func UpdateUserPassword(ctx context.Context, id int, password string) error {
	if len(password) < 6 {
		return &utils.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	db := config.GetDB()
	res := db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("password", string(hashed))
	if res.Error != nil {
		return utils.NewPersistenceError(res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
