// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package mintegral

import "testing"

func TestStatusResponseClassification(t *testing.T) {
	tests := []struct {
		code        int
		wantReady   bool
		wantPending bool
	}{
		{CodeSuccess, true, false},
		{CodeReceived, false, true},
		{CodeGenerating, false, true},
		{CodeNotReady, false, true},
		{CodeNoRequest, false, false},
		{CodeExpired, false, false},
		{CodeError, false, false},
	}
	for _, tt := range tests {
		resp := StatusResponse{Code: tt.code}
		if got := resp.Ready(); got != tt.wantReady {
			t.Errorf("code %d: Ready() = %v, want %v", tt.code, got, tt.wantReady)
		}
		if got := resp.Pending(); got != tt.wantPending {
			t.Errorf("code %d: Pending() = %v, want %v", tt.code, got, tt.wantPending)
		}
	}
}

func TestParseTSV(t *testing.T) {
	body := "Campaign Id\tOffer Id\tCreative Id\tOffer Name\tCreative Name\tSpend\tImpression\tClick\tConversion\n" +
		"77001\t981273\t55100\tSummer Push\tvideo_a\t1,234.56\t1,000,000\t5,400\t120\n" +
		"\n" +
		"77002\t981274\t\tWinter Push\n"

	rows := ParseTSV(body)
	if len(rows) != 2 {
		t.Fatalf("ParseTSV returned %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.OfferID != "981273" {
		t.Errorf("OfferID = %q, want 981273", first.OfferID)
	}
	if first.Spend != 1234.56 {
		t.Errorf("Spend = %v, want 1234.56 (comma grouping)", first.Spend)
	}
	if first.Impression != 1000000 {
		t.Errorf("Impression = %d, want 1000000", first.Impression)
	}
	if first.Click != 5400 || first.Conversion != 120 {
		t.Errorf("Click/Conversion = %d/%d, want 5400/120", first.Click, first.Conversion)
	}

	// Short line pads missing cells with zero values.
	second := rows[1]
	if second.OfferID != "981274" {
		t.Errorf("OfferID = %q, want 981274", second.OfferID)
	}
	if second.Spend != 0 || second.Impression != 0 {
		t.Errorf("short row metrics = %v/%d, want zeros", second.Spend, second.Impression)
	}
}

func TestParseTSVEmpty(t *testing.T) {
	if rows := ParseTSV(""); rows != nil {
		t.Errorf("empty body: got %d rows, want nil", len(rows))
	}
	if rows := ParseTSV("Campaign Id\tOffer Id\n"); rows != nil {
		t.Errorf("header only: got %d rows, want nil", len(rows))
	}
}
