package indexer

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/gohornet/fundgov/pkg/utils"
	"github.com/iotaledger/hive.go/events"
	kvutils "github.com/iotaledger/hive.go/kvstore/utils"
	"github.com/iotaledger/hive.go/logger"
)

const (
	dbFileName = "auditlog.db"
)

var (
	ErrNotFound = errors.New("no events recorded yet")
)

// Indexer records the funding events in a sqlite database, so the history of a project can be queried
// after the project was removed from the engine.
type Indexer struct {
	*utils.WrappedLogger

	db *gorm.DB
}

func NewIndexer(dbPath string, log *logger.Logger) (*Indexer, error) {

	if err := kvutils.CreateDirectory(dbPath, 0700); err != nil {
		return nil, err
	}

	dbFile := filepath.Join(dbPath, dbFileName)

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, err
	}

	// Create the tables and indexes if needed
	if err := db.AutoMigrate(&status{}, &event{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate audit log")
	}

	return &Indexer{
		WrappedLogger: utils.NewWrappedLogger(log),
		db:            db,
	}, nil
}

// AttachFunding records every funding event. Failures are logged, the engine is not affected.
func (i *Indexer) AttachFunding(fundingEvents *funding.Events) {
	fundingEvents.AttachAll(events.NewClosure(func(notification *funding.Notification) {
		if err := i.ApplyNotification(notification); err != nil {
			i.LogWarnf("failed to record %s of project %d: %s", notification.Kind, notification.ProjectKey, err)
		}
	}))
}

// ApplyNotification stores the event and moves the last recorded tick forward.
func (i *Indexer) ApplyNotification(notification *funding.Notification) error {
	tx := i.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Error; err != nil {
		return err
	}

	if err := tx.Create(eventFromNotification(notification)).Error; err != nil {
		tx.Rollback()
		return err
	}

	current := &status{}
	if err := tx.Take(current).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return err
	}

	if current.ID == 0 || notification.Tick > current.LastTick {
		if err := tx.Clauses(clause.OnConflict{
			UpdateAll: true,
		}).Create(&status{ID: 1, LastTick: notification.Tick}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

// LastTick returns the tick of the newest recorded event.
func (i *Indexer) LastTick() (tick.Index, error) {
	s := &status{}
	if err := i.db.Take(s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return s.LastTick, nil
}

func (i *Indexer) CloseDatabase() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
