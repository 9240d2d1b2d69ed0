// Command seed fills the database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"charityfeed/internal/bootstrap"
	"charityfeed/internal/config"
	"charityfeed/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of reader accounts to create")
	numPosts := flag.Int("posts", 60, "Number of published posts to create")
	maxLikes := flag.Int("max-likes", 20, "Upper bound of likes per post")
	maxComments := flag.Int("max-comments", 6, "Upper bound of comments per post")
	shouldClean := flag.Bool("clean", false, "Delete all users, posts, likes and comments first")
	fixture := flag.String("fixture", "", "Load a YAML fixture instead of generating data (\"demo\" for the bundled one)")
	dryRun := flag.Bool("dry-run", false, "Generate without writing")
	fast := flag.Bool("fast", false, "Skip bcrypt for generated accounts (they cannot log in)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true, SkipStorage: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close(ctx)

	s := seed.NewSeeder(rt.DB, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		MaxLikes:    *maxLikes,
		MaxComments: *maxComments,
		SkipBcrypt:  *fast,
		DryRun:      *dryRun,
	})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var sum *seed.Summary
	switch *fixture {
	case "":
		sum, err = s.Seed(ctx)
	case "demo":
		var fx *seed.Fixture
		if fx, err = seed.DemoFixture(); err == nil {
			sum, err = s.ApplyFixture(ctx, fx)
		}
	default:
		var fx *seed.Fixture
		if fx, err = seed.LoadFixture(*fixture); err == nil {
			sum, err = s.ApplyFixture(ctx, fx)
		}
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %s", sum)
	if *fixture == "" && !*fast {
		log.Printf("All generated accounts use the password: %s", seed.DefaultPassword)
	}
}
