// Package main seeds a demo account into Supabase for local development.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/quanticpro/backend/services/leveling"
	"github.com/quanticpro/backend/services/users"
	"github.com/quanticpro/backend/supabase/client"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "Path to .env with SUPABASE_URL and SUPABASE_SERVICE_KEY")
		userID  = flag.String("user-id", "00000000-0000-0000-0000-000000000001", "Demo user ID")
		email   = flag.String("email", "demo@quanticpro.it", "Demo user email")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no env file loaded (%s): %v", *envFile, err)
	}

	url := os.Getenv("SUPABASE_URL")
	serviceKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if url == "" || serviceKey == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	supa, err := client.New(client.Config{URL: url, APIKey: serviceKey})
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	ctx := context.Background()
	store := users.NewSupabaseStore(supa)

	u := users.NewUser(*userID, *email)
	u.Exp = 730
	u.Level = leveling.CalculateLevel(u.Exp)
	u.Badge = leveling.BadgeForExp(u.Exp)
	u.Incomes = map[string][]users.Income{
		"2026-08": {
			{Cash: 340, Pos: 510.50, Total: 850.50, Date: "2026-08-27"},
			{Cash: 280, Pos: 402, Total: 682, Date: "2026-08-28"},
		},
	}
	u.Expenses = map[string][]users.Expense{
		"2026-08": {
			{Name: "Affitto agosto", Amount: 1200, Category: users.CategoryRent, Date: "2026-08-01"},
			{Name: "Ordine Metro", Amount: 430.80, Category: users.CategoryFoodBeverage, Date: "2026-08-12"},
		},
	}
	u.Products = []users.Product{
		{ID: "p1", Name: "Pomodori San Marzano", Price: 3.20, VAT: 4, Store: "Metro", CreatedAt: u.CreatedAt},
		{ID: "p2", Name: "Pomodori San Marzano", Price: 2.80, VAT: 4, Store: "Selex", CreatedAt: u.CreatedAt},
	}
	u.Bills = []users.Bill{
		{ID: "b1", Title: "Enel", Amount: 180.40, DueDate: "2026-09-15", CreatedAt: u.CreatedAt, UpdatedAt: u.CreatedAt},
	}
	u.MenuCategories = []users.MenuCategory{
		{ID: "c1", Name: "Antipasti", Items: []users.MenuItem{
			{ID: "i1", Name: "Bruschetta", Price: 6.50, Category: "c1"},
		}},
	}

	if err := store.Create(ctx, u); err != nil {
		log.Fatalf("seed user: %v", err)
	}
	log.Printf("seeded demo user %s (%s)", u.ID, u.Email)
}
