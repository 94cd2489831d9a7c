package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"devicehub-api/internal/auth"
	"devicehub-api/internal/config"
)

func main() {
	var (
		userID     = flag.Int64("user", 1, "User ID")
		roles      = flag.String("roles", "admin", "Comma-separated list of roles")
		expiryMins = flag.Int("expiry", 1440, "Token expiry in minutes (default: 24 hours)")
		secret     = flag.String("secret", "", "JWT secret (overrides JWT_SECRET env var)")
		issuer     = flag.String("issuer", "", "JWT issuer (overrides JWT_ISS env var)")
		audience   = flag.String("audience", "", "JWT audience (overrides JWT_AUD env var)")
	)
	flag.Parse()

	cfg := config.Load()
	if *secret != "" {
		cfg.JWTSecret = *secret
	}
	if *issuer != "" {
		cfg.JWTIssuer = *issuer
	}
	if *audience != "" {
		cfg.JWTAudience = *audience
	}

	var roleList []string
	for _, role := range strings.Split(*roles, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roleList = append(roleList, role)
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, time.Duration(*expiryMins)*time.Minute)
	if err := jwtManager.ValidateConfig(); err != nil {
		log.Fatalf("Invalid JWT configuration: %v", err)
	}

	token, err := jwtManager.GenerateToken(*userID, roleList)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("User ID: %d\n", *userID)
	fmt.Printf("Roles: %s\n", strings.Join(roleList, ", "))
	fmt.Printf("Expiry: %d minutes\n", *expiryMins)
	fmt.Printf("Issuer: %s\n", cfg.JWTIssuer)
	fmt.Printf("Audience: %s\n", cfg.JWTAudience)
	fmt.Printf("\nToken:\n%s\n\n", token)
	fmt.Printf("curl -H \"Authorization: Bearer %s\" http://localhost:8080/devices\n", token)
}
