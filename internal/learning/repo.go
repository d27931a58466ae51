package learning

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
)

// Repository reads learning content.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.LearningContent, error)
	Create(ctx context.Context, content *models.LearningContent) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a learning content repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.LearningContent, error) {
	var content models.LearningContent
	if err := r.DB(ctx).Where("id = ?", id).Take(&content).Error; err != nil {
		return nil, err
	}
	return &content, nil
}

func (r *repository) Create(ctx context.Context, content *models.LearningContent) error {
	if content.ID == uuid.Nil {
		content.ID = uuid.New()
	}
	return r.DB(ctx).Create(content).Error
}
