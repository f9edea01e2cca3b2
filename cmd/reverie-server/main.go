package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/reverie-ai/reverie/chatservice"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	if err := chatservice.Run(); err != nil {
		os.Exit(1)
	}
}
