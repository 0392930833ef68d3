// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package models defines data structures for the Adreckon application.

This package contains the domain models used throughout the application: the
canonical warehouse row produced by the allocation engine, hourly report rows,
daily reconciliation rows, ETL run records, and the request/response structures
of the ops API. It serves as the single source of truth for data structure
definitions.

Source-specific wire types live in the clickflare and mintegral subpackages so
that upstream API field names stay confined to the connector boundary.

Model Categories:

Warehouse Models:
  - CanonicalRow: merged daily performance row (primary metrics + allocated spend)
  - HourlyRow: single-pass hourly report row, stored in UTC
  - DailyReportRow: per-(date, media) reconciliation row with manual corrections

Run Tracking:
  - RunRecord: persisted outcome of one ETL run (status, duration, record count)
  - Job kind and run status constants shared by the scheduler, registry, and API

API Models:
  - Trigger/status/log responses for the job endpoints
  - Daily report query, spend correction, and lock requests

Usage:

	row := models.CanonicalRow{
	    ReportDate: date,
	    Media:      "Mintegral",
	    AdsetID:    "981273",
	    Spend:      12.34,
	}
*/
package models
