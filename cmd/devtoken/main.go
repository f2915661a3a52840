// Command devtoken issues an access token for local testing against the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"quiz-forge/internal/config"
	"quiz-forge/internal/dto"
	"quiz-forge/internal/service"
)

func main() {
	userID := flag.String("user", "", "user id to embed in the token")
	flag.Parse()
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -user <id>")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	authService, err := service.NewAuthService(cfg.JWT)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create auth service: %v\n", err)
		os.Exit(1)
	}

	ttl := cfg.JWT.AccessTokenTTL
	token, err := authService.CreateJWT(context.Background(), *userID, ttl, service.TokenTypeAccess)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create token: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	})
}
