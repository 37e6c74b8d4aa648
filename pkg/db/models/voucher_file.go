package models

import "time"

// VoucherFile is an attachment row. FilePath is the blob store key.
type VoucherFile struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	VoucherID int64     `gorm:"column:voucher_id;not null" json:"voucherId"`
	FileName  string    `gorm:"column:file_name;not null" json:"fileName"`
	FilePath  string    `gorm:"column:file_path;not null" json:"filePath"`
	MimeType  *string   `gorm:"column:mime_type" json:"mimeType"`
	Size      int64     `gorm:"column:size;not null" json:"size"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (VoucherFile) TableName() string { return "voucher_files" }
