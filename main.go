package main

import (
	"embed"
	"log"

	"github.com/joho/godotenv"

	"transcriber-desk/internal/bootstrap"
)

//go:embed frontend/index.html frontend/app.js frontend/style.css
var appAssets embed.FS

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
