package config

import (
	"os"
	"strings"
)

// SyncOutboxEnabled controls the client-sync outbox dispatcher.
// Deployments without Pub/Sub (local dev, CI) leave outbox rows pending.
//
// Set via env:
// - SYNC_OUTBOX_ENABLED=true
func SyncOutboxEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SYNC_OUTBOX_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoMergeSuggestionsEnabled gates the duplicate-log grouping endpoint.
// The merge itself is always available; only the suggestion feed is optional.
//
// Set via env:
// - AUTO_MERGE_SUGGESTIONS=true (default on)
func AutoMergeSuggestionsEnabled() bool {
	raw := strings.TrimSpace(os.Getenv("AUTO_MERGE_SUGGESTIONS"))
	if raw == "" {
		return true
	}
	v := strings.ToLower(raw)
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
