package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/repos"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// IdentityService maps provider-side user ids onto local accounts.
type IdentityService interface {
	// Resolve returns the local user for a provider's external id, or
	// ErrUnknownUser when no link exists.
	Resolve(ctx context.Context, provider, externalUserID string) (uuid.UUID, error)
	Link(ctx context.Context, userID uuid.UUID, provider, externalUserID string) (*types.DeviceLink, error)
	ListLinks(ctx context.Context, userID uuid.UUID) ([]types.DeviceLink, error)
}

type identityService struct {
	log            *logger.Logger
	deviceLinkRepo repos.DeviceLinkRepo
	userRepo       repos.UserRepo
}

func NewIdentityService(log *logger.Logger, deviceLinkRepo repos.DeviceLinkRepo, userRepo repos.UserRepo) IdentityService {
	return &identityService{
		log:            log.With("service", "IdentityService"),
		deviceLinkRepo: deviceLinkRepo,
		userRepo:       userRepo,
	}
}

func (is *identityService) Resolve(ctx context.Context, provider, externalUserID string) (uuid.UUID, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	externalUserID = strings.TrimSpace(externalUserID)
	if provider == "" || externalUserID == "" {
		return uuid.Nil, fmt.Errorf("provider and external user id required: %w", apperrors.ErrInvalidArgument)
	}
	link, err := is.deviceLinkRepo.GetByExternal(ctx, nil, provider, externalUserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up device link: %w", err)
	}
	if link == nil {
		return uuid.Nil, fmt.Errorf("no link for %s user %q: %w", provider, externalUserID, apperrors.ErrUnknownUser)
	}
	return link.UserID, nil
}

func (is *identityService) Link(ctx context.Context, userID uuid.UUID, provider, externalUserID string) (*types.DeviceLink, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	externalUserID = strings.TrimSpace(externalUserID)
	if provider == "" || externalUserID == "" {
		return nil, fmt.Errorf("provider and external user id required: %w", apperrors.ErrInvalidArgument)
	}
	user, uErr := is.userRepo.GetByID(ctx, nil, userID)
	if uErr != nil {
		return nil, fmt.Errorf("failed to load user: %w", uErr)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
	}
	link := &types.DeviceLink{
		ID:             uuid.New(),
		UserID:         userID,
		Provider:       provider,
		ExternalUserID: externalUserID,
	}
	if err := is.deviceLinkRepo.Upsert(ctx, nil, link); err != nil {
		return nil, fmt.Errorf("failed to upsert device link: %w", err)
	}
	is.log.Info("device link upserted",
		"user_id", userID,
		"provider", provider,
		"external_user_id", externalUserID)
	return link, nil
}

func (is *identityService) ListLinks(ctx context.Context, userID uuid.UUID) ([]types.DeviceLink, error) {
	return is.deviceLinkRepo.ListByUser(ctx, nil, userID)
}
