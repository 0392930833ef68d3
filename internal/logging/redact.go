// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package logging

import "strings"

// Connector requests carry API keys in headers, and upstream error
// bodies sometimes echo the request back. These helpers keep credentials
// out of log output.

// SanitizeToken masks a credential, keeping the first and last four
// characters. Short values are masked entirely.
//
//	SanitizeToken("ak_9f31c6d2e8b74a05") // "ak_9...4a05"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeError scrubs an upstream error message before logging. If the
// message mentions anything credential-shaped the whole message is
// replaced, otherwise it is truncated to a loggable length.
func SanitizeError(msg string) string {
	sensitivePatterns := []string{
		"api-key",
		"api_key",
		"apikey",
		"access-key",
		"access_key",
		"token",
		"secret",
		"password",
		"authorization",
	}

	lowerMsg := strings.ToLower(msg)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return "upstream error withheld: response may contain credentials"
		}
	}

	return truncateString(msg, 200)
}

// SanitizeValue masks value when its key names a credential. Used when
// logging request parameters wholesale.
func SanitizeValue(key, value string) string {
	sensitiveKeys := map[string]bool{
		"api-key":       true,
		"api_key":       true,
		"apikey":        true,
		"access-key":    true,
		"access_key":    true,
		"token":         true,
		"secret":        true,
		"password":      true,
		"authorization": true,
	}

	if sensitiveKeys[strings.ToLower(key)] {
		return SanitizeToken(value)
	}
	return value
}

// truncateString truncates s to maxLen, appending an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
