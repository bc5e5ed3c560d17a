// File: internal/usecase/config_uc.go
package usecase

import (
	"context"
	"strings"

	"media-insight/internal/domain"
	"media-insight/internal/domain/ports/repository"
)

// Compile-time check
var _ ConfigUseCase = (*configUC)(nil)

type ConfigUseCase interface {
	Get(ctx context.Context, key string) (string, error)
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

type configUC struct {
	repo repository.SystemConfigRepository
}

func NewConfigUseCase(repo repository.SystemConfigRepository) *configUC {
	return &configUC{repo: repo}
}

func (u *configUC) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", domain.ErrInvalidArgument
	}
	return u.repo.Get(ctx, nil, key)
}

func (u *configUC) GetAll(ctx context.Context) (map[string]string, error) {
	return u.repo.GetAll(ctx, nil)
}

func (u *configUC) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return domain.ErrInvalidArgument
	}
	return u.repo.Set(ctx, nil, key, value)
}
