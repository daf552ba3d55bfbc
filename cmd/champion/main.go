package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/aaruvan/tokenchamp/internal/adapters/in/cli"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := cli.RootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
