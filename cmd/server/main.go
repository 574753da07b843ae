package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sourcedive/sourcedive/pkg/chat"
	"github.com/sourcedive/sourcedive/pkg/config"
	"github.com/sourcedive/sourcedive/pkg/database"
	"github.com/sourcedive/sourcedive/pkg/embeddings"
	"github.com/sourcedive/sourcedive/pkg/server"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	if err := db.EnsureVectorExtension(ctx); err != nil {
		log.Fatalf("Failed to enable pgvector: %v", err)
	}
	if err := db.CreateEmbeddingsTable(ctx, cfg.EvidenceCollection, embeddings.DefaultDimension); err != nil {
		log.Fatalf("Failed to create evidence table: %v", err)
	}

	chatSvc, err := chat.NewService(ctx, db, cfg)
	if err != nil {
		log.Fatalf("Failed to init chat service: %v", err)
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleAPIKey)
	if err != nil {
		log.Fatalf("Failed to init embedder: %v", err)
	}
	evidenceTools := chat.NewEvidenceToolset(db, embedder, cfg)

	svc := server.NewService(db, cfg)
	handler := server.NewHandler(svc, chatSvc, evidenceTools)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
