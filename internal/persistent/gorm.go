package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// taskPO is the persistence object mapped to the "persistents" table.
type taskPO struct {
	ID          string `gorm:"primaryKey;size:36"`
	ObjectID    string `gorm:"size:36;not null;index:idx_object_flag"`
	Flag        string `gorm:"size:50;not null;index:idx_object_flag"`
	Bucket      string `gorm:"size:63;not null"`
	Key         string `gorm:"size:500;not null"`
	PID         string `gorm:"column:pid;uniqueIndex;size:100;not null"`
	Ops         string `gorm:"type:text;not null"`
	Pipeline    string `gorm:"size:100"`
	Result      string `gorm:"type:json"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"index"`
}

// TableName maps the persistence object to its table.
func (taskPO) TableName() string {
	return "persistents"
}

func toTaskPO(task *TaskRecord) *taskPO {
	return &taskPO{
		ID:          task.ID,
		ObjectID:    task.ObjectID,
		Flag:        task.Flag,
		Bucket:      task.Bucket,
		Key:         task.Key,
		PID:         task.PID,
		Ops:         task.Ops,
		Pipeline:    task.Pipeline,
		Result:      string(task.Result),
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
	}
}

func fromTaskPO(po *taskPO) *TaskRecord {
	task := &TaskRecord{
		ID:          po.ID,
		ObjectID:    po.ObjectID,
		Flag:        po.Flag,
		Bucket:      po.Bucket,
		Key:         po.Key,
		PID:         po.PID,
		Ops:         po.Ops,
		Pipeline:    po.Pipeline,
		CompletedAt: po.CompletedAt,
		CreatedAt:   po.CreatedAt,
	}
	if po.Result != "" {
		task.Result = json.RawMessage(po.Result)
	}
	return task
}

// GormRepository is a MySQL-backed implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a GORM-backed task-record repository and
// migrates its table.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&taskPO{}); err != nil {
		return nil, fmt.Errorf("persistent: migrate persistents table: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Save persists a task record.
func (r *GormRepository) Save(ctx context.Context, task *TaskRecord) error {
	if err := r.db.WithContext(ctx).Save(toTaskPO(task)).Error; err != nil {
		return fmt.Errorf("persistent: save: %w", err)
	}
	return nil
}

// FindByPID retrieves a task record by its pipeline-assigned task id.
func (r *GormRepository) FindByPID(ctx context.Context, pid string) (*TaskRecord, error) {
	var po taskPO
	if err := r.db.WithContext(ctx).Where("pid = ?", pid).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("persistent: find by pid: %w", err)
	}
	return fromTaskPO(&po), nil
}

// FindByObjectAndFlag retrieves the task record for an object and a
// derived-work flag.
func (r *GormRepository) FindByObjectAndFlag(ctx context.Context, objectID, flag string) (*TaskRecord, error) {
	var po taskPO
	if err := r.db.WithContext(ctx).Where("object_id = ? AND flag = ?", objectID, flag).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("persistent: find by object and flag: %w", err)
	}
	return fromTaskPO(&po), nil
}

// AttachResult merges a completion result into the matching record.
// Zero matched rows is a silent no-op.
func (r *GormRepository) AttachResult(ctx context.Context, pid string, result json.RawMessage, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&taskPO{}).Where("pid = ?", pid).Updates(map[string]any{
		"result":       string(result),
		"completed_at": completedAt,
	})
	if res.Error != nil {
		return false, fmt.Errorf("persistent: attach result: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
