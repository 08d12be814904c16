package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/notewise/notewise-backend/internal/clients/milvus"
  "github.com/notewise/notewise-backend/internal/clients/openai"
  redisclient "github.com/notewise/notewise-backend/internal/clients/redis"
  "github.com/notewise/notewise-backend/internal/db"
  "github.com/notewise/notewise-backend/internal/handlers"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/middleware"
  "github.com/notewise/notewise-backend/internal/observability"
  "github.com/notewise/notewise-backend/internal/repos"
  "github.com/notewise/notewise-backend/internal/server"
  "github.com/notewise/notewise-backend/internal/services"
  "github.com/notewise/notewise-backend/internal/sse"
  "github.com/notewise/notewise-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  ragEnabled := utils.GetEnvAsBool("RAG_ENABLED", true, log)
  maxWorkers := utils.GetEnvAsInt("RAG_MAX_WORKERS", 4, log)
  timeoutSeconds := utils.GetEnvAsInt("RAG_TIMEOUT_SECONDS", 300, log)
  embeddingDim := utils.GetEnvAsInt("EMBEDDING_DIM", 768, log)
  embedBatchSize := utils.GetEnvAsInt("EMBED_BATCH_SIZE", 32, log)
  searchTopK := utils.GetEnvAsInt("RAG_SEARCH_TOP_K", 5, log)
  milvusAddr := utils.GetEnv("MILVUS_ADDR", "http://localhost:19530", log)
  milvusToken := utils.GetEnv("MILVUS_TOKEN", "", log)

  // Observability
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "notewise-backend",
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })
  if otelShutdown != nil {
    defer func() {
      shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
      defer cancel()
      if err := otelShutdown(shutdownCtx); err != nil {
        log.Warn("otel shutdown failed", "error", err)
      }
    }()
  }
  metrics := observability.Init(log)
  metrics.StartServer(context.Background(), log, utils.GetEnv("METRICS_ADDR", ":9091", log))

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  kbRepo := repos.NewKnowledgeBaseRepo(thePG, log)
  docRepo := repos.NewDocumentRepo(thePG, log)
  sessionRepo := repos.NewChatSessionRepo(thePG, log)
  messageRepo := repos.NewChatMessageRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  var sseBus redisclient.SSEBus
  if os.Getenv("REDIS_ADDR") != "" {
    sseBus, err = redisclient.NewSSEBus(log)
    if err != nil {
      log.Warn("Redis SSE bus init failed, falling back to local hub", "error", err)
      sseBus = nil
    } else {
      if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
        log.Warn("Redis SSE forwarder failed to start", "error", err)
      }
    }
  }

  // Clients
  log.Info("Setting up clients from main...")
  openaiClient, err := openai.NewClient(log)
  if err != nil {
    log.Error("Could not init OpenAI client", "error", err)
    os.Exit(1)
  }
  milvusClient, err := milvus.New(log, milvus.Config{
    BaseURL: milvusAddr,
    Token:   milvusToken,
  })
  if err != nil {
    log.Error("Could not init Milvus client", "error", err)
    os.Exit(1)
  }
  vectorStore, err := milvus.NewVectorStore(log, milvusClient)
  if err != nil {
    log.Error("Could not init vector store", "error", err)
    os.Exit(1)
  }
  vectorStore = observability.InstrumentVectorStore("milvus", vectorStore)

  // Services
  log.Info("Setting up Services from main...")
  authService := services.NewAuthService(log, jwtSecretKey)
  embedder := services.NewEmbedderService(log, openaiClient, embeddingDim, embedBatchSize)
  ragService := services.NewRAGService(log, embedder, vectorStore)
  if err := ragService.EnsureReady(context.Background()); err != nil {
    log.Error("Vector collection init failed", "error", err)
    os.Exit(1)
  }
  notifier := services.NewIndexNotifier(log, sseHub, sseBus)
  coordinator := services.NewIndexCoordinator(
    log,
    docRepo,
    kbRepo,
    ragService,
    notifier,
    maxWorkers,
    time.Duration(timeoutSeconds)*time.Second,
  )
  if !ragEnabled {
    log.Warn("RAG subsystem disabled; index hooks and retrieval are off")
    coordinator.Disable()
  }
  kbService := services.NewKnowledgeBaseService(log, kbRepo, docRepo, ragService)
  docService := services.NewDocumentService(log, docRepo, kbRepo, coordinator)
  chatService := services.NewChatService(log, sessionRepo, messageRepo, ragService, openaiClient, coordinator, searchTopK)

  // Periodic sweep for tasks whose worker died without publishing a
  // terminal status.
  go func() {
    ticker := time.NewTicker(60 * time.Second)
    defer ticker.Stop()
    for range ticker.C {
      moved, err := coordinator.CheckTimeoutTasks(context.Background())
      if err != nil {
        log.Warn("Timeout sweep failed", "error", err)
        continue
      }
      if moved > 0 {
        log.Info("Timeout sweep moved tasks", "count", moved)
      }
    }
  }()

  // Handlers
  log.Info("Setting up handlers from main...")
  kbHandler := handlers.NewKnowledgeBaseHandler(log, kbService)
  docHandler := handlers.NewDocumentHandler(log, docService)
  chatHandler := handlers.NewChatHandler(log, chatService)
  ragHandler := handlers.NewRAGHandler(log, ragService, coordinator)
  sseHandler := handlers.NewSSEHandler(log, sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthMiddleware:       authMiddleware,
    KnowledgeBaseHandler: kbHandler,
    DocumentHandler:      docHandler,
    ChatHandler:          chatHandler,
    RAGHandler:           ragHandler,
    SSEHandler:           sseHandler,
    Metrics:              metrics,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
