package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/repository"
)

// RegisterUser регистрирует нового покупателя.
func (s *Service) RegisterUser(ctx context.Context, username, password, nickname string) (int64, error) {
	return s.createUser(ctx, username, password, nickname, model.RoleUser)
}

func (s *Service) createUser(ctx context.Context, username, password, nickname string, role model.Role) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if nickname == "" {
		nickname = username
	}
	return s.repo.CreateUser(ctx, model.User{
		Username:     username,
		PasswordHash: hash,
		Nickname:     nickname,
		Role:         role,
	})
}

// AuthenticateUser проверяет логин и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SeedAdmin создаёт администратора, если логин задан и ещё не занят.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.createUser(ctx, username, password, username, model.RoleAdmin)
	if errors.Is(err, repository.ErrUserExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("admin user created", zap.String("username", username))
	return nil
}
