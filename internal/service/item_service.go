package service

import (
	"context"
	"errors"
	"strings"

	"renthub/internal/apperr"
	"renthub/internal/database"
	"renthub/internal/domain"
	"renthub/internal/models"

	"github.com/rs/zerolog"
)

// ItemService manages the item catalog the booking flow depends on.
type ItemService struct {
	items  domain.ItemStore
	users  domain.UserStore
	logger *zerolog.Logger
}

func NewItemService(items domain.ItemStore, users domain.UserStore, logger *zerolog.Logger) *ItemService {
	return &ItemService{
		items:  items,
		users:  users,
		logger: logger,
	}
}

func (s *ItemService) Create(ctx context.Context, item *models.Item, ownerID int64) (*models.Item, error) {
	exists, err := s.users.UserExists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("user %d not found", ownerID)
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil, apperr.Validation("item name must not be empty")
	}

	item.OwnerID = ownerID
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", item.ID).Int64("owner_id", ownerID).Msg("item created")
	return item, nil
}

func (s *ItemService) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("item %d not found", id)
		}
		return nil, err
	}
	return item, nil
}

// Update applies non-zero fields of the patch. Only the owner may
// change an item.
func (s *ItemService) Update(ctx context.Context, patch *models.Item, callerID int64) (*models.Item, error) {
	item, err := s.GetByID(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != callerID {
		return nil, apperr.AccessDenied("user %d does not own item %d", callerID, item.ID)
	}

	if strings.TrimSpace(patch.Name) != "" {
		item.Name = patch.Name
	}
	if patch.Description != "" {
		item.Description = patch.Description
	}
	item.Available = patch.Available

	if err := s.items.UpdateItem(ctx, item); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("item %d not found", item.ID)
		}
		return nil, err
	}
	return item, nil
}

func (s *ItemService) ListByOwner(ctx context.Context, ownerID int64) ([]models.Item, error) {
	exists, err := s.users.UserExists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("user %d not found", ownerID)
	}
	return s.items.ListItemsByOwner(ctx, ownerID)
}
