package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/config"
)

func main() {
	var (
		userID     = flag.Int64("user", 1, "User ID")
		orgID      = flag.Int64("org", 1, "Organization ID")
		roles      = flag.String("roles", "org_admin", "Comma-separated list of roles")
		expiryMins = flag.Int("expiry", 1440, "Token expiry in minutes")
		secret     = flag.String("secret", "", "JWT secret (overrides JWT_SECRET env var)")
	)
	flag.Parse()

	cfg := config.Load()
	if *secret != "" {
		cfg.JWTSecret = *secret
	}

	roleList := strings.Split(*roles, ",")
	for i, role := range roleList {
		roleList[i] = strings.TrimSpace(role)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, time.Duration(*expiryMins)*time.Minute)

	token, err := jwtManager.GenerateToken(*userID, *orgID, roleList)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("User ID: %d\n", *userID)
	fmt.Printf("Org ID: %d\n", *orgID)
	fmt.Printf("Roles: %s\n", strings.Join(roleList, ", "))
	fmt.Printf("\nToken:\n%s\n\n", token)
	fmt.Printf("Usage example:\n")
	fmt.Printf("curl -H \"Authorization: Bearer %s\" http://localhost:8080/requests\n", token)
}
