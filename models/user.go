package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;not null;default:Staff" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" validate:"required,max=100"`
	Name     string   `json:"name" validate:"required,max=100"`
	Password string   `json:"password" validate:"required"`
	Role     UserRole `json:"role" validate:"omitempty,oneof=Admin Staff"`
}

type LoginInfo struct {
	Token     string    `json:"token"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// users are never cached: the password hash is not serialized
func findUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return &user, nil
}

// Login checks the credentials and issues a signed token. Both outcomes are audited.
func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	username = strings.TrimSpace(username)
	ctx = utils.SetUsernameInContext(ctx, username)
	invalid := utils.ValidationErrorf("invalid username or password")

	user, err := findUserByUsername(ctx, username)
	if err != nil {
		RecordAudit(ctx, AuditCategoryLoginFail, fmt.Sprintf("unknown user %q", username))
		if errors.Is(err, utils.ErrTransientStorage) {
			return nil, err
		}
		return nil, invalid
	}
	if !utils.PasswordMatches(user.Password, password) {
		RecordAudit(ctx, AuditCategoryLoginFail, fmt.Sprintf("wrong password for %q", username))
		return nil, invalid
	}
	if !utils.DereferencePtr(user.IsActive, true) {
		RecordAudit(ctx, AuditCategoryLoginFail, fmt.Sprintf("disabled user %q", username))
		return nil, utils.ValidationErrorf("user is disabled")
	}

	token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	RecordAudit(utils.SetUserNameInContext(ctx, user.Name), AuditCategoryLogin, fmt.Sprintf("%s signed in", user.Username))
	return &LoginInfo{
		Token:     token,
		UserId:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(utils.TokenLifespan()),
	}, nil
}

func GetAllUsers(ctx context.Context) ([]*User, error) {
	db := config.GetDB()
	var results []*User
	if err := db.WithContext(ctx).Order("username ASC").Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	username := html.EscapeString(strings.TrimSpace(input.Username))
	if err := utils.ValidateUnique[User](ctx, "username", username, 0); err != nil {
		return nil, err
	}
	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = UserRoleStaff
	}
	user := User{
		Username: username,
		Name:     strings.TrimSpace(input.Name),
		Password: hashedPassword,
		Role:     role,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryUser, fmt.Sprintf("user %s created with role %s", user.Username, user.Role))
	return &user, nil
}

// EnsureAdmin creates the admin account unless a user with that username already exists.
func EnsureAdmin(ctx context.Context, username, name, password string) (*User, bool, error) {
	var count int64
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, false, utils.ClassifyStorageError(err)
	}
	if count > 0 {
		user, err := findUserByUsername(ctx, username)
		return user, false, err
	}
	user, err := CreateUser(ctx, &NewUser{Username: username, Name: name, Password: password, Role: UserRoleAdmin})
	return user, err == nil, err
}

func SetUserActive(ctx context.Context, id int, isActive bool) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	if current, ok := utils.GetUserIdFromContext(ctx); ok && current == id && !isActive {
		return nil, utils.ValidationErrorf("you cannot disable your own account")
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).UpdateColumn("is_active", isActive).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	user.IsActive = &isActive
	RecordAudit(ctx, AuditCategoryUser, fmt.Sprintf("user %s active=%t", user.Username, isActive))
	return user, nil
}

// ChangePassword replaces the signed-in user's password after checking the old one.
func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, utils.ValidationErrorf("user id is required")
	}
	user, err := utils.FetchModel[User](ctx, userId)
	if err != nil {
		return nil, err
	}
	if !utils.PasswordMatches(user.Password, oldPassword) {
		return nil, utils.ValidationErrorf("old password is wrong")
	}
	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).UpdateColumn("password", hashedPassword).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryUser, fmt.Sprintf("%s changed their password", user.Username))
	return user, nil
}
