package types

import (
  "time"
  "github.com/google/uuid"
)

const (
  DocTypeDocument = "document"
  DocTypeFolder   = "folder"
)

const (
  IndexStatusPending   = "pending"
  IndexStatusIndexing  = "indexing"
  IndexStatusCompleted = "completed"
  IndexStatusFailed    = "failed"
  IndexStatusTimeout   = "timeout"
)

// IndexState tracks the vector indexing lifecycle of a document. The task
// uuid acts as the compare-and-swap token: every (re)index submission
// installs a fresh uuid, and only the worker still holding the current uuid
// may publish a terminal status.
type IndexState struct {
  Status      string      `gorm:"column:rag_index_status;not null;default:pending" json:"status"`
  TaskUUID    *string     `gorm:"column:rag_index_task_uuid;index" json:"task_uuid,omitempty"`
  WorkerID    *string     `gorm:"column:rag_index_thread_id" json:"worker_id,omitempty"`
  StartedAt   *time.Time  `gorm:"column:rag_index_started_at" json:"started_at,omitempty"`
  CompletedAt *time.Time  `gorm:"column:rag_index_completed_at" json:"completed_at,omitempty"`
  Error       *string     `gorm:"column:rag_index_error" json:"error,omitempty"`
}

type Document struct {
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
  User            *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  KnowledgeBaseID uuid.UUID       `gorm:"type:uuid;not null;index" json:"knowledge_base_id"`
  KnowledgeBase   *KnowledgeBase  `gorm:"constraint:OnDelete:CASCADE;foreignKey:KnowledgeBaseID;references:ID" json:"knowledge_base,omitempty"`
  FolderID        *uuid.UUID      `gorm:"type:uuid;index" json:"folder_id,omitempty"`
  Name            string          `gorm:"column:name;not null" json:"name"`
  DocType         string          `gorm:"column:doc_type;not null;default:document" json:"doc_type"`
  Content         string          `gorm:"column:content;type:text" json:"content"`
  IndexState      IndexState      `gorm:"embedded" json:"index_state"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Document) TableName() string {
  return "document"
}

func (d *Document) IsFolder() bool {
  return d.DocType == DocTypeFolder
}
