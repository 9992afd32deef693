package psql

import (
	"context"

	"gorm.io/gorm"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

type GormAccountsRepo struct {
	db *gorm.DB
}

func NewGormAccountsRepo(db *gorm.DB) *GormAccountsRepo {
	return &GormAccountsRepo{db: db}
}

func (r *GormAccountsRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ChartOfAccountsEntry{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
