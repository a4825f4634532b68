// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the HTTP handlers, which validate
// their parsed query and body structs, and by the config package, which
// validates value ranges after loading. Failures convert to an APIError
// carrying the VALIDATION_FAILED code:
//
//	type similarQuery struct {
//	    K int `query:"k" validate:"gte=0,lte=100"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// Field names in messages are taken from the json, koanf or query tag, in
// that order, falling back to the Go field name.
package validation
