package httpapi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"skillreel.org/internal/stream"
)

func TestWatchStreamDeliversEvents(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createProfile("alice", "Alice")
	bob := api.createProfile("bob", "Bob")

	resp := api.post("/v1/videos", map[string]any{
		"id":          "vid-1",
		"title":       "Color theory",
		"description": "Mixing a limited palette",
		"category":    "Art",
		"content_url": "https://blobs.example.com/vid-1",
	}, alice)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, api.baseURL+"/v1/watch/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	sse, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer sse.Body.Close()
	if sse.StatusCode != http.StatusOK {
		t.Fatalf("stream status: got %d, want 200", sse.StatusCode)
	}
	if ct := sse.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("stream content type: %q", ct)
	}

	got := make(chan stream.WatchEvent, 1)
	go func() {
		scanner := bufio.NewScanner(sse.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var evt stream.WatchEvent
			if json.Unmarshal([]byte(data), &evt) == nil {
				got <- evt
				return
			}
		}
	}()

	// Let the subscription register before publishing.
	time.Sleep(50 * time.Millisecond)

	resp = api.post("/v1/videos/vid-1/watch", nil, bob)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watch status: got %d, want 200", resp.StatusCode)
	}

	select {
	case evt := <-got:
		if evt.VideoID != "vid-1" || evt.Viewer != "bob" || evt.Creator != "alice" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Points != 10 {
			t.Fatalf("event points: got %d, want 10", evt.Points)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no watch event before deadline")
	}
}
