// Command admintoken issues a bearer token for the /admin endpoints, signed
// with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"

	"etaservice/internal/config"
	"etaservice/internal/utils"
)

func main() {
	subject := flag.String("subject", "ops", "token subject")
	ttl := flag.Duration("ttl", utils.AdminTokenTTL, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := utils.GenerateToken(*subject, utils.AdminRole, cfg.Security.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
