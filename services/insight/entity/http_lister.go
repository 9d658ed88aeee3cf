// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	listerRequestTimeout = 10 * time.Second
	listerMaxBodySize    = 4 << 20 // 4 MiB
)

// =============================================================================
// Wire Types
// =============================================================================

type companyListResponse struct {
	Companies []wireCompany `json:"companies"`
}

type wireCompany struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// =============================================================================
// HTTPLister
// =============================================================================

// HTTPLister fetches the company listing from the entity store's REST
// endpoint (GET {base}/companies).
//
// Thread Safety: Safe for concurrent use.
type HTTPLister struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLister creates an HTTPLister.
//
// Inputs:
//
//	baseURL - Entity store base URL, e.g. "http://entities:8080/v1".
//
// Outputs:
//
//	*HTTPLister - The constructed lister. Never nil.
func NewHTTPLister(baseURL string) *HTTPLister {
	return &HTTPLister{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: listerRequestTimeout},
	}
}

// ListKnownCompanies implements CompanyLister.
func (l *HTTPLister) ListKnownCompanies(ctx context.Context) ([]Company, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/companies", nil)
	if err != nil {
		return nil, fmt.Errorf("building company list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("company list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, listerMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading company list response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("company list returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed companyListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing company list response: %w", err)
	}

	companies := make([]Company, 0, len(parsed.Companies))
	for _, c := range parsed.Companies {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		companies = append(companies, Company{
			ID:      c.ID,
			Name:    c.Name,
			Aliases: c.Aliases,
		})
	}
	return companies, nil
}
