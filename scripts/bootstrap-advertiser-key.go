package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/soundstage/adserve/internal/auth"
	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/repository"
)

type output struct {
	Advertiser string   `json:"advertiser"`
	KeyID      string   `json:"key_id"`
	Key        string   `json:"key"`
	KeyPrefix  string   `json:"key_prefix"`
	Scopes     []string `json:"scopes"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		advertiser  = flag.String("advertiser", "", "Advertiser name the key belongs to")
		name        = flag.String("name", "bootstrap", "Key name")
		scopesInput = flag.String("scopes", "stats", "Comma-separated scopes (stats,admin)")
		env         = flag.String("env", auth.EnvLive, "Key environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *advertiser == "" {
		fmt.Fprintln(os.Stderr, "advertiser is required")
		os.Exit(1)
	}

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	generated, err := auth.GenerateAPIKey(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	key := &model.AdvertiserKey{
		ID:         ulid.Make().String(),
		Advertiser: *advertiser,
		KeyHash:    generated.Hash,
		KeyPrefix:  generated.Prefix,
		Scopes:     scopes,
		Name:       *name,
		CreatedAt:  time.Now().UTC(),
	}

	if err := repo.CreateAdvertiserKey(ctx, key); err != nil {
		fmt.Fprintln(os.Stderr, "create advertiser key:", err)
		os.Exit(1)
	}

	out := output{
		Advertiser: *advertiser,
		KeyID:      key.ID,
		Key:        generated.Plaintext,
		KeyPrefix:  key.KeyPrefix,
		Scopes:     scopes,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func parseScopes(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{model.ScopeStats}, nil
	}
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !isValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeStats}
	}
	return scopes, nil
}

func isValidScope(scope string) bool {
	for _, allowed := range model.ValidScopes {
		if scope == allowed {
			return true
		}
	}
	return false
}
