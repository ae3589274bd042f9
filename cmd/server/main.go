package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/minjikim/nalmoa/internal/db"
	routes "github.com/minjikim/nalmoa/internal/http"
	"github.com/minjikim/nalmoa/internal/models"
	"github.com/minjikim/nalmoa/internal/service"
	"github.com/minjikim/nalmoa/internal/share"
	"github.com/minjikim/nalmoa/internal/store"
)

func main() {
	// Load .env first. Missing file is fine; production sets env vars
	// directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	// 1. Initialize Database
	database, err := db.Init()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 2. Run Migrations
	log.Println("Running database migrations...")
	if err := database.AutoMigrate(
		&models.Room{},
		&models.Participant{},
		&models.Vote{},
		&models.VoteResponse{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations complete.")

	// 3. Wire stores and the facade
	rooms := service.NewRoomService(
		store.NewRoomStore(database),
		store.NewParticipantStore(database),
		store.NewVoteStore(database),
		share.LogSharer{},
	)

	// 4. Initialize Gin Router
	router := gin.Default()

	// 5. Setup Routes
	routes.SetupRoutes(router, rooms)

	// 6. Start Server with Graceful Shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
