// Package dashboard provides the embedded web UI for the analytics dashboard.
//
// The page subscribes to /api/sse and renders every snapshot. It is served
// by the server package at "/", with {{.Title}} replaced by the configured
// title.
package dashboard

import "embed"

// Assets contains assets/index.html, a single page with inline CSS and
// JavaScript.
//
//go:embed assets/*
var Assets embed.FS
