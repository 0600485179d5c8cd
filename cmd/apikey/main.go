package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/credentials"
	"studio/internal/infra"
)

func main() {
	var (
		getFlag   bool
		setFlag   string
		clearFlag bool
	)
	flag.BoolVar(&getFlag, "get", false, "Report whether an API key is stored (the key itself is masked)")
	flag.StringVar(&setFlag, "set", "", "Store the given API key (fallbacks to IMAGE_API_KEY)")
	flag.BoolVar(&clearFlag, "clear", false, "Remove the stored API key")
	flag.Parse()

	_ = godotenv.Load()

	if setFlag == "" && !getFlag && !clearFlag {
		setFlag = strings.TrimSpace(os.Getenv("IMAGE_API_KEY"))
	}
	selected := 0
	for _, on := range []bool{getFlag, setFlag != "", clearFlag} {
		if on {
			selected++
		}
	}
	if selected != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -get, -set or -clear is required")
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "apikey").Str("backend", cfg.CredentialBackend).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeStore, err := credentials.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open credential store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	switch {
	case getFlag:
		token, ok, err := store.Get(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read api key: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("no API key stored")
			os.Exit(1)
		}
		fmt.Printf("API key stored: %s\n", mask(token))
	case clearFlag:
		if err := store.Clear(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API key cleared")
	default:
		if err := store.Set(ctx, setFlag); err != nil {
			fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API key stored successfully")
	}
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
