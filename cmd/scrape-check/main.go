package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/solosuccess/competitor-intel/internal/scraper"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "per-page timeout")
	delay := flag.Duration("delay", time.Second, "minimum delay between requests")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: scrape-check [-timeout 30s] [-delay 1s] URL...")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	fmt.Println("🔍 Competitor Page Scrape Check")
	fmt.Println(strings.Repeat("=", 40))

	s := scraper.NewWebScraper(scraper.Options{
		UserAgent: os.Getenv("SCRAPE_USER_AGENT"),
		Timeout:   *timeout,
		MinDelay:  *delay,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flag.NArg())*(*timeout+*delay))
	defer cancel()

	failed := 0
	for _, url := range flag.Args() {
		fmt.Printf("\n🔸 %s... ", url)
		content, err := s.Scrape(ctx, url)
		if err != nil {
			fmt.Printf("❌ ERROR: %v\n", err)
			failed++
			continue
		}

		fmt.Printf("✅ %d characters of text\n", len(content.Content))
		fmt.Printf("   📝 Title: %q\n", content.Title)
		if content.Description != "" {
			fmt.Printf("   💬 Description: %q\n", content.Description)
		}
		fmt.Printf("   🔗 Links: %d | 🖼  Images: %d\n", len(content.Links), len(content.Images))
		fmt.Printf("   #  Content hash: %s\n", content.Metadata.ContentHash)
	}

	fmt.Printf("\n%d of %d pages scraped\n", flag.NArg()-failed, flag.NArg())
	if failed > 0 {
		os.Exit(1)
	}
}
