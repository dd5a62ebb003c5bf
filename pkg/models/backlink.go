package models

import "time"

// Backlink records that the source page's content links to the target page.
type Backlink struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SourcePageID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_backlinks_source_target" json:"sourcePageId"`
	TargetPageID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_backlinks_source_target;index" json:"targetPageId"`
	WorkspaceID  string    `gorm:"type:varchar(36);not null" json:"workspaceId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName specifies the table name.
func (Backlink) TableName() string {
	return "backlinks"
}
