package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"chore-tracker/internal/model"
)

// UserRepository handles CRUD for household members.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate is the trivial credential check: member name plus PIN. The
// name comparison is folded in Go because SQLite's LOWER is ASCII-only.
func (r *UserRepository) Authenticate(ctx context.Context, name, pin string) (*model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("pin = ?", strings.TrimSpace(pin)).Find(&users).Error; err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	for i := range users {
		if strings.EqualFold(users[i].Name, name) {
			return &users[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// LinkTelegram binds a Telegram account to a member after a PIN check.
func (r *UserRepository) LinkTelegram(ctx context.Context, user *model.User, telegramID int64) error {
	user.TelegramID = telegramID
	if err := r.db.WithContext(ctx).Model(user).Update("telegram_id", telegramID).Error; err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}
	return nil
}

func (r *UserRepository) ListHelpers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("role = ?", model.RoleHelper).
		Order("name ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
