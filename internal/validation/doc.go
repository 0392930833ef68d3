// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package validation wraps go-playground/validator v10 behind a singleton
// and translates its field errors into the VALIDATION_ERROR shape the ops
// API returns. Request structs declare their rules as validate tags; the
// API layer calls ValidateStruct and converts failures with ToAPIError.
package validation
