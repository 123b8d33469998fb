package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A .env next to the binary is optional; PILLBOX_* variables may also
	// come from the service environment.
	_ = godotenv.Load()

	Execute()
}
