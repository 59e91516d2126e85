package services

import (
	"context"
	"errors"
	"strings"

	"github.com/primesmshub/sms-hub-api/models"
	"gorm.io/gorm"
)

// UserService manages account profiles
type UserService struct {
	db       *gorm.DB
	userInfo UserInfoProvider
}

func NewUserService(db *gorm.DB, userInfo UserInfoProvider) *UserService {
	return &UserService{db: db, userInfo: userInfo}
}

// CreateFromToken registers the caller using the profile the identity provider returns for accessToken
func (s *UserService) CreateFromToken(ctx context.Context, auth0ID, accessToken string) (*models.User, error) {
	info, err := s.userInfo.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, &AppError{Kind: KindValidation, Code: "MISSING_EMAIL", Message: "Email not provided by Auth0"}
	}
	name := info.Name
	if name == "" {
		name = info.Email
	}

	user := models.User{Auth0ID: auth0ID, Name: name, Email: info.Email}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &AppError{Kind: KindConflict, Code: "USER_EXISTS", Message: "A user with this Auth0 ID or email already exists"}
		}
		return nil, NewInternalError("Failed to create user", err)
	}
	return &user, nil
}

// FindByAuth0ID loads the profile behind a token subject
func (s *UserService) FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AppError{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "User not found"}
		}
		return nil, NewInternalError("failed to load user", err)
	}
	return &user, nil
}

// FindByTelegramChat loads the user linked to a Telegram chat
func (s *UserService) FindByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AppError{Kind: KindNotFound, Code: "NOT_LINKED", Message: "Please link your Telegram account first."}
		}
		return nil, NewInternalError("failed to load user", err)
	}
	return &user, nil
}

// UpdateProfile changes name and/or email; empty values are left untouched
func (s *UserService) UpdateProfile(ctx context.Context, auth0ID, name, email string) (*models.User, error) {
	user, err := s.FindByAuth0ID(ctx, auth0ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name = strings.TrimSpace(name); name != "" {
		updates["name"] = name
	}
	if email = strings.TrimSpace(email); email != "" {
		updates["email"] = email
	}
	if len(updates) == 0 {
		return nil, NewValidationError("At least one field (name or email) must be provided")
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &AppError{Kind: KindConflict, Code: "EMAIL_EXISTS", Message: "Email already in use"}
		}
		return nil, NewInternalError("Failed to update user", err)
	}
	return s.FindByAuth0ID(ctx, auth0ID)
}

// LinkTelegram attaches a Telegram chat to the caller so bot commands can act on their account
func (s *UserService) LinkTelegram(ctx context.Context, auth0ID string, chatID int64) (*models.User, error) {
	if chatID == 0 {
		return nil, NewValidationError("chatId is required")
	}
	user, err := s.FindByAuth0ID(ctx, auth0ID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("telegram_chat_id", chatID).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflictError("This Telegram chat is already linked to another account")
		}
		return nil, NewInternalError("failed to link telegram", err)
	}
	user.TelegramChatID = &chatID
	return user, nil
}

// isUniqueViolation matches duplicate-key errors from both PostgreSQL and SQLite
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
