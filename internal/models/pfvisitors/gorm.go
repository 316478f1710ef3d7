package pfvisitors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormLedger implémente Ledger sur sqlite ou mysql
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Ensure(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&Visitor{})
}

func (l *GormLedger) Find(ctx context.Context, ip string) (*Visitor, error) {
	var visitor Visitor
	err := l.db.WithContext(ctx).Where("ip_address = ?", ip).First(&visitor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding visitor: %w", err)
	}
	return &visitor, nil
}

func (l *GormLedger) Insert(ctx context.Context, ip string, geo Geo, at time.Time) error {
	visitor := newVisitor(ip, geo, at)
	err := l.db.WithContext(ctx).Create(&visitor).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("error inserting visitor: %w", err)
	}
	return nil
}

func (l *GormLedger) Touch(ctx context.Context, ip string, at time.Time) error {
	result := l.db.WithContext(ctx).
		Model(&Visitor{}).
		Where("ip_address = ?", ip).
		Updates(map[string]interface{}{
			"last_visit":  at,
			"visit_count": gorm.Expr("visit_count + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("error updating visitor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count retourne le nombre d'entrées pour une IP, utile pour vérifier l'unicité
func (l *GormLedger) Count(ctx context.Context, ip string) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&Visitor{}).Where("ip_address = ?", ip).Count(&count).Error
	return count, err
}

func (l *GormLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
