package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/alerts"
	"github.com/solosuccess/competitor-intel/internal/briefing"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/models"
	"github.com/solosuccess/competitor-intel/internal/repository"
	"github.com/solosuccess/competitor-intel/internal/scraper"
	"github.com/solosuccess/competitor-intel/internal/storage"
	"github.com/solosuccess/competitor-intel/internal/tracker"
)

const (
	localUser = "local-user"
	outputDir = "test_output"
)

// consoleNotifier prints alerts and writes briefings to the output directory
type consoleNotifier struct{}

func (consoleNotifier) SendCompetitorAlert(_ context.Context, to string, a *models.CompetitorActivity) error {
	fmt.Printf("📧 Alert email to %s: [%s] %s - %s\n", to, strings.ToUpper(string(a.Importance)), a.CompetitorName, a.Title)
	return nil
}

func (consoleNotifier) SendPush(_ context.Context, userID string, a *models.CompetitorActivity) error {
	fmt.Printf("📱 Push to %s: %s\n", userID, a.Title)
	return nil
}

func (consoleNotifier) SendBriefing(_ context.Context, to, subject, htmlBody, textBody string) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("To: %s\nSubject: %s\n\n", to, subject)
	fmt.Println(textBody)
	fmt.Println(strings.Repeat("=", 70))

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	name := filepath.Join(outputDir, fmt.Sprintf("briefing_%s.html", time.Now().Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(name, []byte(htmlBody), 0644); err != nil {
		return err
	}
	fmt.Printf("💾 HTML briefing saved to %s\n", name)
	return nil
}

func main() {
	fmt.Println("🧪 Competitor Intelligence - Local Pipeline Run")
	fmt.Println("===============================================")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: local-run URL...")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	logrus.SetLevel(logrus.WarnLevel)

	cfg := &config.Config{
		TimeZone:                  "UTC",
		PaidTiers:                 []string{models.SubscriptionTierAccelerator, models.SubscriptionTierPremium},
		MaxCompetitorsAccelerator: 5,
		MaxCompetitorsPremium:     10,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo := repository.NewMemoryStore()
	repo.AddUser(&models.User{
		ID:                 localUser,
		Email:              "you@localhost",
		SubscriptionTier:   models.SubscriptionTierPremium,
		SubscriptionStatus: models.SubscriptionStatusActive,
		EmailVerified:      true,
	})

	for _, url := range os.Args[1:] {
		competitor := &models.CompetitorProfile{
			UserID:          localUser,
			Name:            url,
			Website:         url,
			TrackingSources: models.TrackingSources{Website: true},
			IsActive:        true,
		}
		if err := repo.Competitors().Create(ctx, competitor); err != nil {
			log.Fatalf("Failed to add competitor: %v", err)
		}
	}

	notifier := consoleNotifier{}
	alertStore := alerts.NewMemoryAlertStore()
	alertService := alerts.NewService(repo.Activities(), repo.Competitors(), repo.Users(), notifier, alertStore, nil, cfg.Location())
	webScraper := scraper.NewWebScraper(scraper.Options{MinDelay: time.Second})
	trackerService := tracker.NewService(cfg, repo.Competitors(), repo.Activities(), repo.Users(), webScraper, alertService, nil)
	briefingService := briefing.NewService(cfg, repo.Competitors(), repo.Activities(), repo.Users(), notifier, storage.NewMemoryStorage(), nil)

	fmt.Printf("\n🚀 Tracking %d competitors...\n", len(os.Args)-1)
	summary, err := trackerService.TrackAllActive(ctx)
	if err != nil {
		log.Fatalf("Tracking failed: %v", err)
	}
	fmt.Printf("✅ Tracked %d competitors, %d activities, %d errors\n", summary.TotalTracked, summary.TotalActivities, summary.Errors)

	inApp, err := alertService.Alerts(ctx, localUser, false)
	if err != nil {
		log.Fatalf("Failed to list alerts: %v", err)
	}
	fmt.Printf("🔔 %d in-app alerts\n", len(inApp))

	result, err := briefingService.Deliver(ctx, briefing.KindDaily)
	if err != nil {
		log.Fatalf("Briefing delivery failed: %v", err)
	}
	fmt.Printf("\n📬 Briefings sent: %d, errors: %d\n", result.SentCount, result.ErrorCount)

	fmt.Println("\n📊 Tracker stats:")
	fmt.Println(trackerService.GetMetrics())
}
