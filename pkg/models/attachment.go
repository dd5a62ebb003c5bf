package models

import "time"

// Attachment is a file uploaded for a page during import.
type Attachment struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FilePath    string    `gorm:"type:text;not null" json:"filePath"`
	FileSize    int64     `json:"fileSize"`
	FileExt     string    `gorm:"type:varchar(32)" json:"fileExt"`
	MimeType    string    `gorm:"type:varchar(255)" json:"mimeType"`
	URL         string    `gorm:"type:text" json:"url"`
	PageID      string    `gorm:"type:varchar(36);not null;index" json:"pageId"`
	SpaceID     string    `gorm:"type:varchar(36);not null" json:"spaceId"`
	WorkspaceID string    `gorm:"type:varchar(36);not null" json:"workspaceId"`
	CreatorID   string    `gorm:"type:varchar(36)" json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName specifies the table name.
func (Attachment) TableName() string {
	return "attachments"
}
