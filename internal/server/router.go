package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/notewise/notewise-backend/internal/handlers"
  "github.com/notewise/notewise-backend/internal/middleware"
  "github.com/notewise/notewise-backend/internal/observability"
)

type RouterConfig struct {
  AuthMiddleware       *middleware.AuthMiddleware
  KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
  DocumentHandler      *handlers.DocumentHandler
  ChatHandler          *handlers.ChatHandler
  RAGHandler           *handlers.RAGHandler
  SSEHandler           *handlers.SSEHandler
  Metrics              *observability.Metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("notewise-backend"))
  router.Use(middleware.Metrics(cfg.Metrics))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)

// ===============
// || Protected ||
// ===============
  protected := router.Group("/api/v1")
  protected.Use(cfg.AuthMiddleware.RequireAuth())

  // SSE
  protected.GET("/sse/stream", cfg.SSEHandler.Stream)

  // Knowledge bases
  protected.POST("/knowledge-bases", cfg.KnowledgeBaseHandler.Create)
  protected.GET("/knowledge-bases", cfg.KnowledgeBaseHandler.List)
  protected.GET("/knowledge-bases/:kb_id", cfg.KnowledgeBaseHandler.Get)
  protected.DELETE("/knowledge-bases/:kb_id", cfg.KnowledgeBaseHandler.Delete)
  protected.GET("/knowledge-bases/:kb_id/documents", cfg.DocumentHandler.List)

  // Documents
  protected.POST("/documents", cfg.DocumentHandler.Create)
  protected.GET("/documents/:doc_id", cfg.DocumentHandler.Get)
  protected.PUT("/documents/:doc_id", cfg.DocumentHandler.Update)
  protected.DELETE("/documents/:doc_id", cfg.DocumentHandler.Delete)

  // Chat
  protected.POST("/chats", cfg.ChatHandler.CreateSession)
  protected.GET("/chats", cfg.ChatHandler.ListSessions)
  protected.GET("/chats/:session_id", cfg.ChatHandler.GetSession)
  protected.PUT("/chats/:session_id", cfg.ChatHandler.UpdateSession)
  protected.DELETE("/chats/:session_id", cfg.ChatHandler.DeleteSession)
  protected.GET("/chats/:session_id/messages", cfg.ChatHandler.ListMessages)
  protected.POST("/chats/:session_id/messages", cfg.ChatHandler.SendMessage)

  // RAG
  protected.POST("/rag/index", cfg.RAGHandler.Index)
  protected.POST("/rag/reindex/document/:doc_id", cfg.RAGHandler.ReindexDocument)
  protected.DELETE("/rag/index/document/:doc_id", cfg.RAGHandler.DeleteDocumentIndex)
  protected.DELETE("/rag/index/:kb_id", cfg.RAGHandler.DeleteKnowledgeBaseIndex)
  protected.POST("/rag/search", cfg.RAGHandler.Search)
  protected.GET("/rag/status", cfg.RAGHandler.Status)

  return router
}
