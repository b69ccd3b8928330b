package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all configuration for the client session.
type Config struct {
	// APIURL is the backend's base URL.
	APIURL string

	// EventsURL is the websocket endpoint for live chat events.
	EventsURL string

	// CachePath is the local SQLite cache file.
	CachePath string

	// Username and Password authenticate the session. Password may be empty
	// when Token is set.
	Username string
	Password string

	// Token is a pre-issued bearer token. When set, login is skipped.
	Token string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (*Config, error) {
	apiURL := os.Getenv("DEVSWIPE_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:9091"
	}

	eventsURL := os.Getenv("DEVSWIPE_EVENTS_URL")
	if eventsURL == "" {
		eventsURL = deriveEventsURL(apiURL)
	}

	cachePath := os.Getenv("DEVSWIPE_CACHE_PATH")
	if cachePath == "" {
		cachePath = "devswipe.db"
	}

	token := os.Getenv("DEVSWIPE_TOKEN")

	username := os.Getenv("DEVSWIPE_USERNAME")
	if username == "" && token == "" {
		return nil, fmt.Errorf("DEVSWIPE_USERNAME is required")
	}

	password := os.Getenv("DEVSWIPE_PASSWORD")
	if password == "" && token == "" {
		return nil, fmt.Errorf("DEVSWIPE_PASSWORD is required (or set DEVSWIPE_TOKEN)")
	}

	return &Config{
		APIURL:    apiURL,
		EventsURL: eventsURL,
		CachePath: cachePath,
		Username:  username,
		Password:  password,
		Token:     token,
	}, nil
}

// deriveEventsURL maps the HTTP base URL onto the backend's websocket
// endpoint.
func deriveEventsURL(apiURL string) string {
	ws := apiURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws/chat"
}
