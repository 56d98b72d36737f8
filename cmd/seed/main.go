package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"virtual-tryon/internal/config"
	"virtual-tryon/internal/infra/api"
	pg "virtual-tryon/internal/infra/db/postgres"
)

// seed grants credits to owners and prints a bearer token for each of them.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	owners := flag.String("owners", "demo-owner", "comma-separated owner ids")
	credits := flag.Int("credits", 10, "credits to grant to each owner")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed bearer tokens")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ledger := pg.NewCreditLedger(pool)
	auth := api.NewOwnerAuth(cfg.Auth.Secret, false)

	for _, owner := range strings.Split(*owners, ",") {
		owner = strings.TrimSpace(owner)
		if owner == "" {
			continue
		}
		balance, err := ledger.Grant(ctx, nil, owner, *credits)
		if err != nil {
			log.Fatalf("grant %q: %v", owner, err)
		}
		token, err := auth.Mint(owner, *tokenTTL)
		if err != nil {
			log.Fatalf("mint token for %q: %v", owner, err)
		}
		fmt.Printf("seeded: %s balance=%d\n  token: %s\n", owner, balance, token)
	}
	fmt.Println("✅ Seeding complete.")
}
