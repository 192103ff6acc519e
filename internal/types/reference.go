package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Reference entities owned by external collaborators. They exist here as
// FK targets and name sources for provenance notes.

type Farm struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	Address string    `gorm:"column:address" json:"address"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Farm) TableName() string { return "farm" }

type Plant struct {
	ID   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null" json:"name"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Plant) TableName() string { return "plant" }

type Seed struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	PlantID uuid.UUID `gorm:"type:uuid;not null;index" json:"plant_id"`
	Plant   *Plant    `gorm:"foreignKey:PlantID;references:ID" json:"plant,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Seed) TableName() string { return "seed" }

type Distributor struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	Address string    `gorm:"column:address" json:"address"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Distributor) TableName() string { return "distributor" }

type Client struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	Address string    `gorm:"column:address" json:"address"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Client) TableName() string { return "client" }

type Camera struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	CameraIndex int       `gorm:"column:camera_index;autoIncrement;uniqueIndex" json:"camera_index"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Camera) TableName() string { return "camera" }

type CultivationPlan struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PlantID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"plant_id"`
	Plant     *Plant         `gorm:"foreignKey:PlantID;references:ID" json:"plant,omitempty"`
	SeedID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"seed_id"`
	Seed      *Seed          `gorm:"foreignKey:SeedID;references:ID" json:"seed,omitempty"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	IsDefault bool           `gorm:"column:is_default;not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CultivationPlan) TableName() string { return "cultivation_plan" }
