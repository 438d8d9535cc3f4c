// Command seed fills a development database with demo or generated data.
package main

import (
	"context"
	"flag"
	"log"

	"cloudysky/internal/config"
	"cloudysky/internal/database"
	"cloudysky/internal/seed"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	fixture := flag.String("fixture", "", "Apply a built-in YAML fixture (e.g. demo) instead of generated data")
	numUsers := flag.Int("users", 20, "Number of users to create")
	postsPerUser := flag.Int("posts", 5, "Posts per user")
	commentsPerPost := flag.Int("comments", 3, "Comments per post")
	hiddenPercent := flag.Int("hidden", 10, "Percentage of posts and comments to hide")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	var summary *seed.Summary

	if *fixture != "" {
		if *shouldClean {
			if err := seed.Clean(ctx, db); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		fx, err := seed.LoadBuiltinFixture(*fixture)
		if err != nil {
			log.Fatalf("Load fixture: %v", err)
		}
		summary, err = seed.ApplyFixture(ctx, db, fx, bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		summary, err = seed.Seed(ctx, db, seed.Options{
			NumUsers:        *numUsers,
			PostsPerUser:    *postsPerUser,
			CommentsPerPost: *commentsPerPost,
			HiddenPercent:   *hiddenPercent,
			Seed:            *randSeed,
			ShouldClean:     *shouldClean,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Generated users have the password: %s", seed.DefaultPassword)
	}

	log.Printf("Seeded %s", summary)
}
