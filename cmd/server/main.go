package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"deckgrader-backend/handlers"
	"deckgrader-backend/models"
	"deckgrader-backend/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

const apiVersion = "1.0.0"

func main() {
	// Load .env file from project root (relative to cmd/server/)
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	geminiClient, err := initGemini()
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}

	// Initialize services
	gateService := service.NewGateService()

	modelName := os.Getenv("GEMINI_MODEL")
	if modelName == "" {
		modelName = service.DefaultModelName
	}
	graderService := service.NewGraderService(
		service.GraderWithClient(geminiClient),
		service.GraderWithModel(modelName),
	)

	// Initialize handlers
	analyzeHandler := handlers.NewAnalyzeHandler(gateService, graderService)

	// Setup Gin router
	r := gin.Default()
	r.Use(cors.Default())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "ok",
			Version: apiVersion,
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.POST("/analyze", analyzeHandler.Analyze)
		api.POST("/analyze-bulk", analyzeHandler.AnalyzeBulk)
		api.POST("/export-csv", analyzeHandler.ExportCSV)
		api.POST("/parse", analyzeHandler.ParseOnly)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initGemini() (*genai.Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY not set. Grading requires model credentials.")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL := os.Getenv("GEMINI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	log.Println("Gemini client initialized")
	return client, nil
}
