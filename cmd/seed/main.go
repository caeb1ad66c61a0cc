package main

import (
	"context"
	"log"
	"os"
	"time"

	"psvs-console-be/internal/dataservice"
	"psvs-console-be/internal/repository/unitofwork"
	"psvs-console-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo client...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	demo, err := dataservice.SeedDemo(ctx, unitofwork.NewRepositoryFactory(db), time.Now().Add(-48*time.Hour))
	if err != nil {
		log.Fatalf("Error: Seeding failed: %v", err)
	}

	log.Printf("Client:        %s", demo.ClientID)
	log.Printf("Sessions:      %d", len(demo.SessionIDs))
	log.Printf("Mini sessions: %d", len(demo.MiniSessionIDs))
	log.Printf("Messages:      %d", demo.MessageCount)
	log.Println("Demo seeding completed!")
}
