package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/versioning"
)

type ProjectStatus string

const (
	StatusInProgress     ProjectStatus = "in_progress"
	StatusHarvesting     ProjectStatus = "harvesting"
	StatusAlmostFinished ProjectStatus = "almost_finished"
	StatusFinished       ProjectStatus = "finished"
	StatusCancelled      ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusHarvesting, StatusAlmostFinished, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses freeze the project: no further sub-resource writes.
func (s ProjectStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Project is the aggregate root for one production lot. The embedded
// collections (processes, expectations, outputs, history) live as jsonb
// columns on the project row so every sub-resource mutation is a
// single-row UPDATE.
type Project struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FarmID            uuid.UUID        `gorm:"type:uuid;not null;index" json:"farm_id"`
	Farm              *Farm            `gorm:"constraint:OnDelete:CASCADE;foreignKey:FarmID;references:ID" json:"farm,omitempty"`
	PlantID           uuid.UUID        `gorm:"type:uuid;not null" json:"plant_id"`
	Plant             *Plant           `gorm:"foreignKey:PlantID;references:ID" json:"plant,omitempty"`
	SeedID            uuid.UUID        `gorm:"type:uuid;not null" json:"seed_id"`
	Seed              *Seed            `gorm:"foreignKey:SeedID;references:ID" json:"seed,omitempty"`
	CultivationPlanID *uuid.UUID       `gorm:"type:uuid" json:"cultivation_plan_id,omitempty"`
	CultivationPlan   *CultivationPlan `gorm:"foreignKey:CultivationPlanID;references:ID" json:"cultivation_plan,omitempty"`

	ProjectIndex    int        `gorm:"column:project_index;autoIncrement;uniqueIndex" json:"project_index"`
	TxHash          string     `gorm:"column:tx_hash" json:"tx_hash"`
	StartDate       time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate         *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	ExpectedEndDate *time.Time `gorm:"column:expected_end_date" json:"expected_end_date,omitempty"`
	Square          float64    `gorm:"column:square" json:"square"`
	ExpectedOutput  float64    `gorm:"column:expected_output" json:"expected_output"`
	Description     string     `gorm:"column:description" json:"description"`

	Status        ProjectStatus `gorm:"column:status;not null;default:'in_progress';index" json:"status"`
	CreatedAtTime time.Time     `gorm:"column:created_at_time;not null" json:"created_at_time"`
	IsInfoEdited  bool          `gorm:"column:is_info_edited;not null;default:false" json:"is_info_edited"`

	Processes    datatypes.JSONSlice[Process]             `gorm:"column:processes;type:jsonb" json:"processes"`
	Expectations datatypes.JSONSlice[Expectation]         `gorm:"column:expectations;type:jsonb" json:"expectations"`
	Outputs      datatypes.JSONSlice[Output]              `gorm:"column:outputs;type:jsonb" json:"outputs"`
	InfoHistory  datatypes.JSONSlice[ProjectInfoSnapshot] `gorm:"column:info_history;type:jsonb" json:"info_history"`
	CameraIDs    datatypes.JSONSlice[uuid.UUID]           `gorm:"column:camera_ids;type:jsonb" json:"camera_ids"`
	Images       datatypes.JSONSlice[string]              `gorm:"column:images;type:jsonb" json:"images"`
	VideoURLs    datatypes.JSONSlice[string]              `gorm:"column:video_urls;type:jsonb" json:"video_urls"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }

// ProjectInfoSnapshot captures the project's top-level descriptive fields
// before an info update rewrites them.
type ProjectInfoSnapshot struct {
	TxHash          string        `json:"txHash"`
	SeedID          uuid.UUID     `json:"seedId"`
	StartDate       time.Time     `json:"startDate"`
	EndDate         *time.Time    `json:"endDate,omitempty"`
	ExpectedEndDate *time.Time    `json:"expectedEndDate,omitempty"`
	Square          float64       `json:"square"`
	ExpectedOutput  float64       `json:"expectedOutput"`
	Description     string        `json:"description"`
	Status          ProjectStatus `json:"status"`
	CreatedAtTime   time.Time     `json:"createdAtTime"`
	ModifiedAt      time.Time     `json:"modifiedAt"`
}

func (p *Project) InfoSnapshot(now time.Time) ProjectInfoSnapshot {
	return ProjectInfoSnapshot{
		TxHash:          p.TxHash,
		SeedID:          p.SeedID,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		ExpectedEndDate: p.ExpectedEndDate,
		Square:          p.Square,
		ExpectedOutput:  p.ExpectedOutput,
		Description:     p.Description,
		Status:          p.Status,
		CreatedAtTime:   p.CreatedAtTime,
		ModifiedAt:      now,
	}
}

type ProcessType string

const (
	ProcessCultivation ProcessType = "cultivation"
	ProcessPlanting    ProcessType = "planting"
	ProcessFertilize   ProcessType = "fertilize"
	ProcessPesticide   ProcessType = "pesticide"
	ProcessOther       ProcessType = "other"
)

type FertilizationType string

const (
	BaseFertilizer FertilizationType = "base_fertilizer"
	TopFertilizer  FertilizationType = "top_fertilizer"
)

type PestDiseaseType string

const (
	PestTypePest    PestDiseaseType = "pest"
	PestTypeDisease PestDiseaseType = "disease"
)

type CultivationActivity struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PlantingActivity struct {
	Density     string `json:"density"`
	Description string `json:"description"`
}

type FertilizationActivity struct {
	FertilizationTime string            `json:"fertilizationTime"`
	Type              FertilizationType `json:"type"`
	Description       string            `json:"description"`
}

type PestAndDiseaseActivity struct {
	Name        string          `json:"name"`
	Type        PestDiseaseType `json:"type"`
	Symptoms    string          `json:"symptoms"`
	Description string          `json:"description"`
	Solutions   []string        `json:"solutions"`
	Note        string          `json:"note"`
}

type OtherActivity struct {
	Description string `json:"description"`
}

// Process is one field activity. Exactly one payload pointer is set and it
// must match Type.
type Process struct {
	ID   uuid.UUID   `json:"id"`
	Tx   string      `json:"tx"`
	Time time.Time   `json:"time"`
	Type ProcessType `json:"type"`

	Cultivation    *CultivationActivity    `json:"cultivationActivity,omitempty"`
	Planting       *PlantingActivity       `json:"plantingActivity,omitempty"`
	Fertilization  *FertilizationActivity  `json:"fertilizationActivity,omitempty"`
	PestAndDisease *PestAndDiseaseActivity `json:"pestAndDiseaseActivity,omitempty"`
	Other          *OtherActivity          `json:"otherActivity,omitempty"`

	versioning.Versioned
	History []ProcessSnapshot `json:"history,omitempty"`
}

// Validate enforces the one-of-five payload rule.
func (p *Process) Validate() error {
	payloads := 0
	if p.Cultivation != nil {
		payloads++
	}
	if p.Planting != nil {
		payloads++
	}
	if p.Fertilization != nil {
		payloads++
	}
	if p.PestAndDisease != nil {
		payloads++
	}
	if p.Other != nil {
		payloads++
	}
	if payloads != 1 {
		return fmt.Errorf("process must carry exactly one activity payload, got %d", payloads)
	}
	switch p.Type {
	case ProcessCultivation:
		if p.Cultivation == nil {
			return fmt.Errorf("process type %q requires cultivationActivity", p.Type)
		}
	case ProcessPlanting:
		if p.Planting == nil {
			return fmt.Errorf("process type %q requires plantingActivity", p.Type)
		}
	case ProcessFertilize:
		if p.Fertilization == nil {
			return fmt.Errorf("process type %q requires fertilizationActivity", p.Type)
		}
		if t := p.Fertilization.Type; t != BaseFertilizer && t != TopFertilizer {
			return fmt.Errorf("unknown fertilization type %q", t)
		}
	case ProcessPesticide:
		if p.PestAndDisease == nil {
			return fmt.Errorf("process type %q requires pestAndDiseaseActivity", p.Type)
		}
		if t := p.PestAndDisease.Type; t != PestTypePest && t != PestTypeDisease {
			return fmt.Errorf("unknown pest and disease type %q", t)
		}
	case ProcessOther:
		if p.Other == nil {
			return fmt.Errorf("process type %q requires otherActivity", p.Type)
		}
	default:
		return fmt.Errorf("unknown process type %q", p.Type)
	}
	return nil
}

// ProcessSnapshot is the content state of a process before one update.
type ProcessSnapshot struct {
	Tx             string                  `json:"tx"`
	Time           time.Time               `json:"time"`
	Type           ProcessType             `json:"type"`
	Cultivation    *CultivationActivity    `json:"cultivationActivity,omitempty"`
	Planting       *PlantingActivity       `json:"plantingActivity,omitempty"`
	Fertilization  *FertilizationActivity  `json:"fertilizationActivity,omitempty"`
	PestAndDisease *PestAndDiseaseActivity `json:"pestAndDiseaseActivity,omitempty"`
	Other          *OtherActivity          `json:"otherActivity,omitempty"`
	CreatedAtTime  time.Time               `json:"createdAtTime"`
	ModifiedAt     time.Time               `json:"modifiedAt"`
}

func (p *Process) Snapshot(now time.Time) ProcessSnapshot {
	return ProcessSnapshot{
		Tx:             p.Tx,
		Time:           p.Time,
		Type:           p.Type,
		Cultivation:    p.Cultivation,
		Planting:       p.Planting,
		Fertilization:  p.Fertilization,
		PestAndDisease: p.PestAndDisease,
		Other:          p.Other,
		CreatedAtTime:  p.CreatedAtTime,
		ModifiedAt:     now,
	}
}

// Expectation is a forecast entry for the lot's yield.
type Expectation struct {
	ID     uuid.UUID `json:"id"`
	Tx     string    `json:"tx"`
	Time   time.Time `json:"time"`
	Amount float64   `json:"amount"`
	Note   string    `json:"note"`

	versioning.Versioned
	History []ExpectationSnapshot `json:"history,omitempty"`
}

type ExpectationSnapshot struct {
	Tx            string    `json:"tx"`
	Time          time.Time `json:"time"`
	Amount        float64   `json:"amount"`
	Note          string    `json:"note"`
	CreatedAtTime time.Time `json:"createdAtTime"`
	ModifiedAt    time.Time `json:"modifiedAt"`
}

func (e *Expectation) Snapshot(now time.Time) ExpectationSnapshot {
	return ExpectationSnapshot{
		Tx:            e.Tx,
		Time:          e.Time,
		Amount:        e.Amount,
		Note:          e.Note,
		CreatedAtTime: e.CreatedAtTime,
		ModifiedAt:    now,
	}
}

// DistributorAllocation assigns part of a harvest output to a distributor.
type DistributorAllocation struct {
	DistributorID uuid.UUID `json:"distributorId"`
	Quantity      int       `json:"quantity"`
}

// Output is one harvest record. ExportQR flips to true exactly once, when
// a QR batch has been issued against it.
type Output struct {
	ID          uuid.UUID               `json:"id"`
	Tx          string                  `json:"tx"`
	Time        time.Time               `json:"time"`
	Amount      float64                 `json:"amount"`
	Quantity    int                     `json:"quantity"`
	Images      []string                `json:"images,omitempty"`
	Allocations []DistributorAllocation `json:"allocations,omitempty"`
	ExportQR    bool                    `json:"exportQR"`

	versioning.Versioned
	History []OutputSnapshot `json:"history,omitempty"`
}

type OutputSnapshot struct {
	Tx            string                  `json:"tx"`
	Time          time.Time               `json:"time"`
	Amount        float64                 `json:"amount"`
	Quantity      int                     `json:"quantity"`
	Images        []string                `json:"images,omitempty"`
	Allocations   []DistributorAllocation `json:"allocations,omitempty"`
	CreatedAtTime time.Time               `json:"createdAtTime"`
	ModifiedAt    time.Time               `json:"modifiedAt"`
}

func (o *Output) Snapshot(now time.Time) OutputSnapshot {
	return OutputSnapshot{
		Tx:            o.Tx,
		Time:          o.Time,
		Amount:        o.Amount,
		Quantity:      o.Quantity,
		Images:        o.Images,
		Allocations:   o.Allocations,
		CreatedAtTime: o.CreatedAtTime,
		ModifiedAt:    now,
	}
}
