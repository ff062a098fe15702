package models

import "github.com/greenstack/greenstack/internal/page"

// Dashboard is the page snapshot served by GET /v1/dashboard.
type Dashboard struct {
	Page page.Snapshot `json:"page"`
}

// ActionResult is returned by every dashboard action. Failed actions still
// answer 200: the failure is part of the page, the same way the button
// label shows it.
type ActionResult struct {
	Action string        `json:"action"`
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Page   page.Snapshot `json:"page"`
}

// ClickRequest is the body of POST /v1/dashboard/click.
type ClickRequest struct {
	Target string `json:"target"`
}

// ConnectRequest is the body of POST /v1/dashboard/wifi/connect.
type ConnectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// ThemeRequest is the body of PUT /v1/dashboard/theme.
type ThemeRequest struct {
	Theme string `json:"theme"`
}
