// Command bootstrap-api-key mints the first admin API key for a user and can
// store the user's ads platform token and built-in report formats in the
// same step.
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

	"github.com/adpulse/adpulse/internal/auth"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/repository"
)

type output struct {
	UserID         string   `json:"user_id"`
	KeyID          string   `json:"key_id"`
	Key            string   `json:"key"`
	KeyPrefix      string   `json:"key_prefix"`
	Scopes         []string `json:"scopes"`
	SettingsStored bool     `json:"settings_stored"`
	FormatsSeeded  int      `json:"formats_seeded"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		userID      = flag.String("user-id", "", "User ID to own the API key (required)")
		name        = flag.String("name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", model.ScopeAdmin, "Comma-separated scopes ("+strings.Join(model.ValidScopes, ",")+")")
		env         = flag.String("env", auth.EnvLive, "Key environment: live or test")
		accessToken = flag.String("access-token", os.Getenv("META_ACCESS_TOKEN"), "Ads platform access token to store in settings")
		apiVersion  = flag.String("api-version", "", "Graph API version to store with the token")
		seedFormats = flag.Bool("seed-formats", true, "Create the built-in report formats")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL and -user-id are required")
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

	out := output{UserID: *userID, Scopes: scopes}

	if token := strings.TrimSpace(*accessToken); token != "" {
		err := repo.UpsertSettings(ctx, &model.Settings{
			UserID:      *userID,
			AccessToken: token,
			APIVersion:  *apiVersion,
			UpdatedAt:   time.Now().UTC(),
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "store settings:", err)
			os.Exit(1)
		}
		out.SettingsStored = true
	}

	if *seedFormats {
		created, err := repo.SeedDefaultFormats(ctx, *userID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "seed formats:", err)
			os.Exit(1)
		}
		out.FormatsSeeded = len(created)
	}

	generated, err := auth.GenerateAPIKey(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        *userID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        scopes,
		RateLimitTier: model.TierUnlimited,
		Name:          *name,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}
	out.KeyID = apiKey.ID
	out.Key = generated.Plaintext
	out.KeyPrefix = apiKey.KeyPrefix

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
	var scopes []string
	for _, part := range strings.Split(input, ",") {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !model.IsValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}
