package main

import (
	"go-video-parse/cmd/video-parse/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()
	cmd.Execute()
}
