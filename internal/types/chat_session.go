package types

import (
  "time"
  "github.com/google/uuid"
)

type ChatSession struct {
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
  User            *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  KnowledgeBaseID *uuid.UUID      `gorm:"type:uuid;index" json:"knowledge_base_id,omitempty"`
  KnowledgeBase   *KnowledgeBase  `gorm:"constraint:OnDelete:SET NULL;foreignKey:KnowledgeBaseID;references:ID" json:"knowledge_base,omitempty"`
  Title           string          `gorm:"column:title;not null" json:"title"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null;default:now();index" json:"updated_at"`
}

func (ChatSession) TableName() string {
  return "chat_session"
}
