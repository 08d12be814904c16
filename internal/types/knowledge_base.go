package types

import (
  "time"
  "github.com/google/uuid"
)

type KnowledgeBase struct {
  ID          uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
  User        *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Name        string      `gorm:"column:name;not null" json:"name"`
  Description string      `gorm:"column:description" json:"description"`
  CreatedAt   time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (KnowledgeBase) TableName() string {
  return "knowledge_base"
}
