package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khata-app/khata/internal/app"
	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/shared"
)

const (
	demoEmail    = "demo@khata.local"
	demoPassword = "demo-password"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	opened, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() {
		_ = opened.Close(ctx)
	}()

	fmt.Println("→ Seeding demo user...")
	authService := auth.NewService(opened.Store, auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), auth.WithLogger(logger))
	user, err := seedUser(ctx, authService)
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}

	fmt.Println("→ Seeding sessions...")
	ledger := khata.NewService(opened.Store, shared.NewLocalLocker(5*time.Second), nil, logger)
	created, err := seedSessions(ctx, ledger, user.ID)
	if err != nil {
		log.Fatalf("seed sessions: %v", err)
	}

	fmt.Printf("✓ Seed complete at %s (%d sessions created, login %s / %s)\n",
		time.Now().Format(time.RFC3339), created, demoEmail, demoPassword)
}

func seedUser(ctx context.Context, svc *auth.Service) (*auth.User, error) {
	_, err := svc.Register(ctx, auth.RegisterInput{Name: "Demo Shopkeeper", Email: demoEmail, Password: demoPassword})
	if err != nil && !errors.Is(err, shared.ErrEmailTaken) {
		return nil, err
	}
	return svc.Authenticate(ctx, demoEmail, demoPassword)
}

func seedSessions(ctx context.Context, ledger *khata.Service, ownerID string) (int, error) {
	existing, err := ledger.List(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	d := decimal.RequireFromString
	customers := []khata.CreateInput{
		{
			CustomerName:  "Ali Raza",
			ContactNumber: "0300-1234567",
			Items: []khata.ItemInput{
				{Name: "Sugar 1kg", Quantity: d("2"), UnitPrice: d("150")},
				{Name: "Tea 500g", Quantity: d("1"), UnitPrice: d("950")},
			},
		},
		{
			CustomerName:  "Sana Malik",
			ContactNumber: "0321-7654321",
			Items: []khata.ItemInput{
				{Name: "Basmati Rice 5kg", Quantity: d("1"), UnitPrice: d("1800")},
				{Name: "Cooking Oil 1L", Quantity: d("3"), UnitPrice: d("540.50")},
			},
		},
	}

	created := 0
	for i, in := range customers {
		sess, err := ledger.Create(ctx, ownerID, in)
		if err != nil {
			return created, err
		}
		created++
		if i == 0 {
			if _, err := ledger.Pay(ctx, ownerID, sess.ID, d("500")); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}
