package main

import (
	"batchchat/backend/internal/api/handler"
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/localization"
	"batchchat/backend/internal/roster"
	"batchchat/backend/internal/storage"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <migrate|reconcile|token> [args]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	command := os.Args[1]
	switch command {
	case "token":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin token <user_id> <role>")
			os.Exit(1)
		}
		token, err := handler.NewAuth(cfg.JWTSecret, cfg.TokenTTL).IssueToken(os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	db, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	switch command {
	case "migrate":
		if err := storage.Migrate(db); err != nil {
			log.Fatalf("Error migrating: %v", err)
		}
		fmt.Println("Schema is up to date.")
	case "reconcile":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin reconcile <batch_id>")
			os.Exit(1)
		}
		batchID, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			fmt.Println("Invalid batch ID. Please provide an integer.")
			os.Exit(1)
		}
		// No Redis needed: a failing run is reported here instead of retried.
		s := storage.NewStorageService(db, nil)
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		rec := roster.NewReconciler(s, localization.Default(cfg.Locale), logger)
		res, err := rec.Reconcile(context.Background(), uint(batchID), roster.SystemActor)
		if err != nil {
			log.Fatalf("Error reconciling batch %d: %v", batchID, err)
		}
		if err := printJSON(os.Stdout, res); err != nil {
			log.Fatalf("Error printing result: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
