package pfvisitors

import (
	"context"
	"errors"
	"fmt"
	"portfolio/internal/gormzerologger"
	"portfolio/internal/models/pfconfig"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("visitor not found")
	ErrDuplicate = errors.New("visitor already recorded")
)

// Ledger est le registre persistant des visiteurs, une entrée par IP.
//
// Find n'a aucun effet de bord. Insert crée l'entrée avec first_visit = last_visit = at
// et visit_count = 1 ; il retourne ErrDuplicate si l'IP existe déjà. Touch avance
// last_visit et incrémente visit_count de 1 sans toucher à geo ni first_visit ; il
// retourne ErrNotFound si l'entrée a disparu entre-temps.
type Ledger interface {
	Ensure(ctx context.Context) error
	Find(ctx context.Context, ip string) (*Visitor, error)
	Insert(ctx context.Context, ip string, geo Geo, at time.Time) error
	Touch(ctx context.Context, ip string, at time.Time) error
	Close() error
}

// Open construit le registre choisi par la configuration et prépare son index unique
func Open(ctx context.Context, cfg pfconfig.AnalyticsConfig, gormLevel string) (Ledger, error) {
	var ledger Ledger

	switch cfg.Db {
	case "mongodb":
		client, err := ConnectMongo(ctx, cfg.Uri)
		if err != nil {
			return nil, err
		}
		ledger = NewMongoLedger(client, cfg.Database, cfg.Collection)
	case "sqlite", "mysql":
		dsn := cfg.Path
		if cfg.Db == "mysql" {
			dsn = cfg.Dsn
		}
		db, err := OpenGorm(cfg.Db, dsn, gormLevel)
		if err != nil {
			return nil, err
		}
		ledger = NewGormLedger(db)
	default:
		return nil, fmt.Errorf("le type de database doit etre mongodb, sqlite ou mysql")
	}

	if err := ledger.Ensure(ctx); err != nil {
		ledger.Close()
		return nil, fmt.Errorf("error preparing visitor ledger: %w", err)
	}
	return ledger, nil
}

// OpenGorm ouvre une base sqlite ou mysql avec le logger zerolog
func OpenGorm(dialect, dsn, level string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:         gormzerologger.New(level),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch dialect {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("dialecte sql inconnu: %s", dialect)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("error opening %s ledger: %w", dialect, err)
	}
	return db, nil
}
