package main

import (
	"log"

	"github.com/joho/godotenv"

	"flock/cmd/internal/app"
)

func main() {
	// Local development convenience; real deployments set the environment.
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
