package object

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// persistentInfoJSON stores PersistentInfo as a JSON column.
type persistentInfoJSON PersistentInfo

// Value serializes the column for storage.
func (p *persistentInfoJSON) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan deserializes the column from storage.
func (p *persistentInfoJSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("object: unsupported persistent_info column type %T", value)
	}
}

// objectPO is the persistence object mapped to the "objects" table.
type objectPO struct {
	ID             string              `gorm:"primaryKey;size:36"`
	Bucket         string              `gorm:"size:63;not null"`
	Key            string              `gorm:"size:500;not null;index"`
	Etag           string              `gorm:"size:64"`
	Fname          string              `gorm:"size:255"`
	Fsize          int64               `gorm:"default:0"`
	MimeType       string              `gorm:"size:100;index"`
	EndUser        string              `gorm:"size:100"`
	ImageInfo      string              `gorm:"type:text"`
	AVInfo         string              `gorm:"column:avinfo;type:text"`
	Ext            string              `gorm:"size:20"`
	PersistentInfo *persistentInfoJSON `gorm:"type:json"`
	CreatedAt      time.Time           `gorm:"index"`
	UpdatedAt      time.Time
}

// TableName maps the persistence object to its table.
func (objectPO) TableName() string {
	return "objects"
}

func toPO(obj *Object) *objectPO {
	po := &objectPO{
		ID:        obj.ID,
		Bucket:    obj.Bucket,
		Key:       obj.Key,
		Etag:      obj.Etag,
		Fname:     obj.Fname,
		Fsize:     obj.Fsize,
		MimeType:  obj.MimeType,
		EndUser:   obj.EndUser,
		ImageInfo: obj.ImageInfo,
		AVInfo:    obj.AVInfo,
		Ext:       obj.Ext,
		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,
	}
	if obj.PersistentInfo != nil {
		info := persistentInfoJSON(*obj.PersistentInfo)
		po.PersistentInfo = &info
	}
	return po
}

func fromPO(po *objectPO) *Object {
	obj := &Object{
		ID:        po.ID,
		Bucket:    po.Bucket,
		Key:       po.Key,
		Etag:      po.Etag,
		Fname:     po.Fname,
		Fsize:     po.Fsize,
		MimeType:  po.MimeType,
		EndUser:   po.EndUser,
		ImageInfo: po.ImageInfo,
		AVInfo:    po.AVInfo,
		Ext:       po.Ext,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
	if po.PersistentInfo != nil {
		info := PersistentInfo(*po.PersistentInfo)
		obj.PersistentInfo = &info
	}
	return obj
}

// GormRepository is a MySQL-backed implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a GORM-backed object repository and migrates
// its table.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&objectPO{}); err != nil {
		return nil, fmt.Errorf("object: migrate objects table: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Save persists an object record, updating it when it already exists.
func (r *GormRepository) Save(ctx context.Context, obj *Object) error {
	if err := r.db.WithContext(ctx).Save(toPO(obj)).Error; err != nil {
		return fmt.Errorf("object: save: %w", err)
	}
	return nil
}

// FindByID retrieves an object by its ID.
func (r *GormRepository) FindByID(ctx context.Context, id string) (*Object, error) {
	var po objectPO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("object: find by id: %w", err)
	}
	return fromPO(&po), nil
}

// List returns all object records.
func (r *GormRepository) List(ctx context.Context) ([]*Object, error) {
	var pos []objectPO
	if err := r.db.WithContext(ctx).Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("object: list: %w", err)
	}
	result := make([]*Object, 0, len(pos))
	for i := range pos {
		result = append(result, fromPO(&pos[i]))
	}
	return result, nil
}
