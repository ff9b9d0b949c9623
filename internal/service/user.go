package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"github.com/pageza/foodgram/backend/internal/validation"
)

// UserService handles accounts, passwords and avatars.
type UserService struct {
	db     *gorm.DB
	images *ImageService
}

func NewUserService(db *gorm.DB, images *ImageService) *UserService {
	return &UserService{db: db, images: images}
}

func (s *UserService) Register(ctx context.Context, req types.RegisterRequest) (*types.UserResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	fields := map[string][]string{}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(req.Email)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		fields["email"] = []string{"A user with that email already exists."}
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		fields["username"] = []string{"A user with that username already exists."}
	}
	if err := apperror.Validation(fields); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.ValidationFailed("non_field_errors", "A user with that email or username already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	resp := presentUser(user, false)
	return &resp, nil
}

// Get returns a user as seen by viewerID (0 for anonymous).
func (s *UserService) Get(ctx context.Context, id, viewerID uint) (*types.UserResponse, error) {
	user, err := findUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	out, err := s.Present(ctx, viewerID, []models.User{*user})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *UserService) List(ctx context.Context, page Page, viewerID uint) ([]types.UserResponse, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := s.db.WithContext(ctx).Order("id").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	out, err := s.Present(ctx, viewerID, users)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Present renders users with is_subscribed computed for viewerID.
func (s *UserService) Present(ctx context.Context, viewerID uint, users []models.User) ([]types.UserResponse, error) {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	subscribed, err := subscribedTo(ctx, s.db, viewerID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]types.UserResponse, len(users))
	for i, u := range users {
		out[i] = presentUser(u, subscribed[u.ID])
	}
	return out, nil
}

func (s *UserService) SetPassword(ctx context.Context, userID uint, req types.SetPasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	user, err := findUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return apperror.ValidationFailed("current_password", "Invalid password.")
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error
}

func (s *UserService) SetAvatar(ctx context.Context, userID uint, req types.AvatarRequest) (*types.AvatarResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := findUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	stored, err := s.images.Resolve(ctx, "avatars", "avatar", req.Avatar, user.Avatar)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", stored).Error; err != nil {
		if user.Avatar == nil || *user.Avatar != stored {
			s.images.Discard(ctx, &stored)
		}
		return nil, fmt.Errorf("update avatar: %w", err)
	}
	if user.Avatar != nil && *user.Avatar != stored {
		s.images.Discard(ctx, user.Avatar)
	}
	return &types.AvatarResponse{Avatar: &stored}, nil
}

func (s *UserService) DeleteAvatar(ctx context.Context, userID uint) error {
	user, err := findUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", nil).Error; err != nil {
		return fmt.Errorf("clear avatar: %w", err)
	}
	s.images.Discard(ctx, user.Avatar)
	return nil
}
