// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package logging

import (
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short fully masked", "abc123", "***"},
		{"boundary fully masked", "123456789012", "***"},
		{"long keeps edges", "ak_9f31c6d2e8b74a05", "ak_9...4a05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeTokenNeverLeaksMiddle(t *testing.T) {
	t.Parallel()

	token := "ak_9f31SECRETMIDDLEc6d2"
	got := SanitizeToken(token)
	if strings.Contains(got, "SECRETMIDDLE") {
		t.Errorf("SanitizeToken leaked token body: %q", got)
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want string
	}{
		{
			name: "plain error passes through",
			msg:  "report not ready",
			want: "report not ready",
		},
		{
			name: "api-key mention withheld",
			msg:  `{"error":"invalid api-key: ak_9f31c6d2"}`,
			want: "upstream error withheld: response may contain credentials",
		},
		{
			name: "token mention withheld",
			msg:  "bad token in request",
			want: "upstream error withheld: response may contain credentials",
		},
		{
			name: "case insensitive",
			msg:  "Authorization rejected",
			want: "upstream error withheld: response may contain credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeError(tt.msg); got != tt.want {
				t.Errorf("SanitizeError(%q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestSanitizeErrorTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	msg := strings.Repeat("x", 500)
	got := SanitizeError(msg)
	if len(got) != 203 { // 200 chars plus ellipsis
		t.Errorf("expected truncated message of 203 chars, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"credential key masked", "api-key", "ak_9f31c6d2e8b74a05", "ak_9...4a05"},
		{"credential key case insensitive", "Access-Key", "ck_8e20b5c1d7a63b94", "ck_8...3b94"},
		{"plain key passes through", "account", "acct-alpha", "acct-alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeValue(tt.key, tt.value); got != tt.want {
				t.Errorf("SanitizeValue(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}
