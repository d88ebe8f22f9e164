package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"skillreel.org/internal/ids"
	"skillreel.org/internal/points"
)

// End-to-end smoke run against a live API: two fresh profiles, one
// upload, one watch, then a conservation check on both balances.
func main() {
	base := os.Getenv("SKILLREEL_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(10 * time.Second)

	run := ids.New()
	creator := "smoke-creator-" + run
	viewer := "smoke-viewer-" + run
	videoID := "smoke-video-" + run

	creatorToken := mintToken(client, creator)
	viewerToken := mintToken(client, viewer)

	createProfile(client, creatorToken, "Smoke Creator")
	createProfile(client, viewerToken, "Smoke Viewer")

	resp, err := client.R().
		SetAuthToken(creatorToken).
		SetBody(map[string]any{
			"id":          videoID,
			"title":       "Smoke clip",
			"description": "End-to-end check",
			"category":    "Other",
			"content_url": "https://blobs.example.com/" + videoID,
		}).
		Post("/v1/videos")
	if err != nil || resp.IsError() {
		log.Fatalf("upload video: %v (%s)", err, resp.Status())
	}

	resp, err = client.R().
		SetAuthToken(viewerToken).
		Post("/v1/videos/" + videoID + "/watch")
	if err != nil || resp.IsError() {
		log.Fatalf("watch video: %v (%s)", err, resp.Status())
	}

	creatorPoints := fetchBalance(client, creator)
	viewerPoints := fetchBalance(client, viewer)

	if creatorPoints+viewerPoints != 2*points.InitialGrant {
		log.Fatalf("conservation failed: creator=%d viewer=%d", creatorPoints, viewerPoints)
	}
	if viewerPoints != points.InitialGrant-points.WatchFee || creatorPoints != points.InitialGrant+points.WatchFee {
		log.Fatalf("unexpected balances: creator=%d viewer=%d", creatorPoints, viewerPoints)
	}

	fmt.Printf("✅ watch smoke test passed: video=%s viewer=%s\n", videoID, viewer)
}

func mintToken(client *resty.Client, identity string) string {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := client.R().
		SetBody(map[string]any{"identity": identity}).
		SetResult(&out).
		Post("/v1/auth/token")
	if err != nil || resp.IsError() {
		log.Fatalf("mint token for %s: %v (%s)", identity, err, resp.Status())
	}
	if out.Token == "" {
		log.Fatalf("empty token for %s", identity)
	}
	return out.Token
}

func createProfile(client *resty.Client, token, name string) {
	resp, err := client.R().
		SetAuthToken(token).
		SetBody(map[string]any{"name": name}).
		Post("/v1/profiles")
	if err != nil || resp.IsError() {
		log.Fatalf("create profile %s: %v (%s)", name, err, resp.Status())
	}
}

func fetchBalance(client *resty.Client, identity string) int64 {
	var out struct {
		Points int64 `json:"points"`
		Exists bool  `json:"exists"`
	}
	resp, err := client.R().
		SetResult(&out).
		Get("/v1/profiles/" + identity + "/balance")
	if err != nil || resp.IsError() {
		log.Fatalf("balance %s: %v (%s)", identity, err, resp.Status())
	}
	if !out.Exists {
		log.Fatalf("profile %s missing", identity)
	}
	return out.Points
}
