package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/eclipselink/handoff-backend/config"
	"github.com/eclipselink/handoff-backend/internal/api/handlers"
	"github.com/eclipselink/handoff-backend/internal/api/middleware"
	"github.com/eclipselink/handoff-backend/internal/api/routes"
	"github.com/eclipselink/handoff-backend/internal/cache"
	"github.com/eclipselink/handoff-backend/internal/logger"
	"github.com/eclipselink/handoff-backend/internal/notifications"
	"github.com/eclipselink/handoff-backend/internal/providers/llm"
	"github.com/eclipselink/handoff-backend/internal/providers/stt"
	"github.com/eclipselink/handoff-backend/internal/queue"
	mongorepo "github.com/eclipselink/handoff-backend/internal/repositories/mongo"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/sbar"
	"github.com/eclipselink/handoff-backend/internal/services"
	"github.com/eclipselink/handoff-backend/internal/storage"
	"github.com/eclipselink/handoff-backend/internal/workers"
)

func sttProvider(ctx context.Context) (stt.Provider, error) {
	switch os.Getenv("STT_PROVIDER") {
	case "google":
		return stt.NewGoogleSpeech(ctx)
	default:
		return stt.NewAzureWhisper(
			os.Getenv("AZURE_OPENAI_ENDPOINT"),
			os.Getenv("AZURE_OPENAI_API_KEY"),
			os.Getenv("AZURE_WHISPER_DEPLOYMENT"),
			os.Getenv("AZURE_OPENAI_API_VERSION"),
		)
	}
}

func llmProvider(ctx context.Context) (llm.Provider, error) {
	switch os.Getenv("LLM_PROVIDER") {
	case "vertex":
		return llm.NewVertexGemini(ctx,
			os.Getenv("GCP_PROJECT_ID"),
			os.Getenv("GCP_LOCATION"),
			os.Getenv("VERTEX_MODEL"),
		)
	default:
		return llm.NewAzureOpenAI(
			os.Getenv("AZURE_OPENAI_ENDPOINT"),
			os.Getenv("AZURE_OPENAI_API_KEY"),
			os.Getenv("AZURE_GPT_DEPLOYMENT"),
			os.Getenv("AZURE_OPENAI_API_VERSION"),
		)
	}
}

func main() {
	_ = godotenv.Load()

	lg := logger.New()
	ctx := context.Background()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	lg.Info("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	lg.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	lg.Info("Redis connected")

	// Object storage
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		log.Fatal("GCS_BUCKET environment variable is not set")
	}
	store, err := storage.NewGCSStore(ctx, bucket)
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}
	defer store.Close()

	// Providers
	sttP, err := sttProvider(ctx)
	if err != nil {
		log.Fatalf("STT provider init error: %v", err)
	}
	defer sttP.Close()

	llmP, err := llmProvider(ctx)
	if err != nil {
		log.Fatalf("LLM provider init error: %v", err)
	}

	// Repositories
	mongoDB := config.MongoClient.Database(config.MongoDatabaseName())
	transcripts := mongorepo.NewTranscriptRepo(mongoDB)
	patients := postgres.NewPatientRepo(config.PostgresDB)
	handoffs := postgres.NewHandoffRepo(config.PostgresDB)
	recordings := postgres.NewRecordingRepo(config.PostgresDB)
	documents := postgres.NewSBARRepo(config.PostgresDB)

	// Queue
	q := queue.NewRedisQueue(config.RedisClient, lg)
	q.EnsureGroups(ctx, queue.KindTranscribe, queue.KindGenerateSBAR)
	q.StartPromoters(ctx, queue.KindTranscribe, queue.KindGenerateSBAR)
	q.StartReclaimers(ctx, queue.KindTranscribe, queue.KindGenerateSBAR)

	notifier := notifications.NewRedisNotifier(config.RedisClient, lg)

	// Workers
	transcribePool := &workers.TranscriptionWorkerPool{
		Queue:       q,
		Storage:     store,
		STT:         sttP,
		Transcripts: transcripts,
		Recordings:  recordings,
		Handoffs:    handoffs,
		Notifier:    notifier,
		Logger:      lg,
	}
	if err := transcribePool.Start(ctx); err != nil {
		log.Fatalf("transcription worker init error: %v", err)
	}

	sbarPool := &workers.SBARWorkerPool{
		Queue:     q,
		Generator: sbar.NewGenerator(llmP, lg),
		Documents: documents,
		Patients:  patients,
		Handoffs:  handoffs,
		Notifier:  notifier,
		Logger:    lg,
	}
	if err := sbarPool.Start(ctx); err != nil {
		log.Fatalf("sbar worker init error: %v", err)
	}

	// Services
	pipeline := services.NewPipelineService(q, recordings, handoffs, documents)
	voice := services.NewVoiceService(store, recordings, handoffs, patients, pipeline)
	status := services.NewStatusService(handoffs, recordings, documents, transcripts, cache.NewRedisCache(config.RedisClient))
	sbarSvc := services.NewSBARService(documents, transcripts)
	patientSvc := services.NewPatientService(patients)

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(lg))

	routes.RegisterRoutes(r, routes.Deps{
		Voice:   handlers.NewVoiceHandler(voice, status),
		SBAR:    handlers.NewSBARHandler(sbarSvc),
		Patient: handlers.NewPatientHandler(patientSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
