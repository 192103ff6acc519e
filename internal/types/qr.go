package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// HashPrivateID maps a raw QR private id to its stored form. The raw id
// lives only inside the printed QR code; the backend keeps the digest.
func HashPrivateID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// QRUnit is one issued QR code. A unit moves from unscanned to scanned at
// most once; the conditional update in QRRepo.MarkScanned enforces that.
type QRUnit struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID     uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uq_qr_unit_project_hashed" json:"project_id"`
	Project       *Project     `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	OutputID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"output_id"`
	DistributorID uuid.UUID    `gorm:"type:uuid;not null;index" json:"distributor_id"`
	Distributor   *Distributor `gorm:"foreignKey:DistributorID;references:ID" json:"distributor,omitempty"`
	ClientID      *uuid.UUID   `gorm:"type:uuid;index" json:"client_id,omitempty"`
	Client        *Client      `gorm:"foreignKey:ClientID;references:ID" json:"client,omitempty"`

	HashedPrivateID   string     `gorm:"column:hashed_private_id;not null;uniqueIndex:uq_qr_unit_project_hashed" json:"hashed_private_id"`
	IsScanned         bool       `gorm:"column:is_scanned;not null;default:false;index" json:"is_scanned"`
	IssuedAt          time.Time  `gorm:"column:issued_at;not null" json:"issued_at"`
	ScannedAt         *time.Time `gorm:"column:scanned_at" json:"scanned_at,omitempty"`
	ExportTxRef       string     `gorm:"column:export_tx_ref" json:"export_tx_ref"`
	ScanTxRef         string     `gorm:"column:scan_tx_ref" json:"scan_tx_ref"`
	LedgerSubmittedAt *time.Time `gorm:"column:ledger_submitted_at" json:"ledger_submitted_at,omitempty"`
	ProvenanceNote    string     `gorm:"column:provenance_note" json:"provenance_note"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (QRUnit) TableName() string { return "qr_unit" }

// ClientPurchase is one entry in a client's provenance history.
type ClientPurchase struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Client   *Client   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	QRUnitID uuid.UUID `gorm:"type:uuid;not null;index" json:"qr_unit_id"`
	QRUnit   *QRUnit   `gorm:"foreignKey:QRUnitID;references:ID" json:"qr_unit,omitempty"`

	Time         time.Time `gorm:"column:time;not null;index" json:"time"`
	PurchaseInfo string    `gorm:"column:purchase_info" json:"purchase_info"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ClientPurchase) TableName() string { return "client_purchase" }
