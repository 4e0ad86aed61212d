package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siae-sistema/cardlink/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrStudentExists   = errors.New("student already exists")
	ErrCardTaken       = errors.New("card is already linked to another student")
	ErrStudentHasCard  = errors.New("student already has a linked card")
	ErrCardNotFound    = errors.New("card is not linked to any student")
	ErrDuplicateAccess = errors.New("access already registered today")
)

const dayLayout = "2006-01-02"

// DB is the local sqlite store of students, linked cards and accesses.
type DB struct {
	gorm *gorm.DB
	now  func() time.Time
}

// Open opens (or creates) the sqlite database at path and migrates its schema.
func Open(path string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := gdb.AutoMigrate(&models.Student{}, &models.Card{}, &models.Access{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &DB{gorm: gdb, now: time.Now}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *DB) AddStudent(ctx context.Context, id, name string) (models.Student, error) {
	student := models.Student{ID: id, Name: name}
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Student{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrStudentExists, id)
		}
		return tx.Create(&student).Error
	})
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}

// Student returns one student with its card, if linked.
func (d *DB) Student(ctx context.Context, id string) (models.Student, error) {
	var student models.Student
	err := d.gorm.WithContext(ctx).Preload("Card").First(&student, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Student{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
	}
	return student, err
}

func (d *DB) Students(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := d.gorm.WithContext(ctx).Preload("Card").Order("id").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// LinkCard binds uid to the student. A card belongs to one student and a
// student holds one card.
func (d *DB) LinkCard(ctx context.Context, studentID, uid string) error {
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.First(&student, "id = ?", studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
			}
			return err
		}

		var card models.Card
		err := tx.First(&card, "uid = ?", uid).Error
		switch {
		case err == nil && card.StudentID == studentID:
			return fmt.Errorf("%w: %s", ErrStudentHasCard, studentID)
		case err == nil:
			return fmt.Errorf("%w: %s", ErrCardTaken, uid)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var n int64
		if err := tx.Model(&models.Card{}).Where("student_id = ?", studentID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrStudentHasCard, studentID)
		}

		return tx.Create(&models.Card{UID: uid, StudentID: studentID}).Error
	})
}

func (d *DB) UnlinkCard(ctx context.Context, uid string) error {
	res := d.gorm.WithContext(ctx).Delete(&models.Card{}, "uid = ?", uid)
	if res.Error != nil {
		return fmt.Errorf("failed to unlink card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrCardNotFound, uid)
	}
	return nil
}

func (d *DB) CardByUID(ctx context.Context, uid string) (models.Card, error) {
	var card models.Card
	err := d.gorm.WithContext(ctx).First(&card, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, uid)
	}
	return card, err
}

func (d *DB) Cards(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	if err := d.gorm.WithContext(ctx).Order("student_id").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// RegisterAccess records a tap for a linked card. A second tap on the same
// local day returns the earlier access together with ErrDuplicateAccess.
func (d *DB) RegisterAccess(ctx context.Context, uid string) (models.Access, error) {
	now := d.now()
	access := models.Access{CardUID: uid, Day: now.Format(dayLayout), RecordedAt: now}

	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Card{}).Where("uid = ?", uid).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrCardNotFound, uid)
		}

		var earlier models.Access
		err := tx.First(&earlier, "card_uid = ? AND day = ?", uid, access.Day).Error
		if err == nil {
			access = earlier
			return ErrDuplicateAccess
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&access).Error
	})
	if errors.Is(err, ErrDuplicateAccess) {
		return access, err
	}
	if err != nil {
		return models.Access{}, err
	}
	return access, nil
}

// Accesses lists recorded accesses, oldest first.
func (d *DB) Accesses(ctx context.Context) ([]models.Access, error) {
	var accesses []models.Access
	if err := d.gorm.WithContext(ctx).Order("recorded_at").Find(&accesses).Error; err != nil {
		return nil, fmt.Errorf("failed to list accesses: %w", err)
	}
	return accesses, nil
}
