// Package ares looks up Czech companies in the ARES business register by
// their ICO and syncs the company fields onto matching leads.
package ares

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httpretry"
)

const defaultBaseURL = "https://ares.gov.cz/ekonomicke-subjekty-v-be/rest/ekonomicke-subjekty"

// Company is the subset of the register record we care about.
type Company struct {
	ICO       string
	Name      string
	LegalForm string
	Address   string
	City      string
	Zip       string
}

// Client resolves an ICO to a register record.
type Client interface {
	Lookup(ctx context.Context, ico string) (*Company, error)
}

// HTTPClient talks to the ARES REST API with retries on transient failures.
type HTTPClient struct {
	baseURL string
	http    httpretry.HTTPDoer
}

// NewHTTPClient creates an ARES client. A nil doer gets a retrying client
// with a 15s per-request timeout.
func NewHTTPClient(baseURL string, doer httpretry.HTTPDoer) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 15 * time.Second}, 3)
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: doer}
}

// registerRecord mirrors the ARES response fields we read.
type registerRecord struct {
	ICO           string `json:"ico"`
	ObchodniJmeno string `json:"obchodniJmeno"`
	PravniForma   string `json:"pravniForma"`
	Sidlo         struct {
		TextovaAdresa string `json:"textovaAdresa"`
		NazevObce     string `json:"nazevObce"`
		PSC           int    `json:"psc"`
	} `json:"sidlo"`
}

// Lookup fetches the register record for an ICO. Unknown ICOs map to
// NotFound; register outages map to UpstreamUnavailable so callers retry.
func (c *HTTPClient) Lookup(ctx context.Context, ico string) (*Company, error) {
	if !ValidICO(ico) {
		return nil, domain.Ef(domain.KindInvalidInput, "invalid ico %q", ico)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+ico, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "ares lookup", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.Ef(domain.KindNotFound, "ico %s not in register", ico)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.Ef(domain.KindUpstreamUnavailable, "ares returned status %d", resp.StatusCode)
	}

	var rec registerRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rec); err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "decode ares response", err)
	}
	company := &Company{
		ICO:       rec.ICO,
		Name:      rec.ObchodniJmeno,
		LegalForm: rec.PravniForma,
		Address:   rec.Sidlo.TextovaAdresa,
		City:      rec.Sidlo.NazevObce,
	}
	if rec.Sidlo.PSC > 0 {
		company.Zip = fmt.Sprintf("%05d", rec.Sidlo.PSC)
	}
	if company.ICO == "" {
		company.ICO = ico
	}
	return company, nil
}

// ValidICO checks the 8-digit ICO format including its mod-11 checksum.
func ValidICO(ico string) bool {
	if len(ico) != 8 {
		return false
	}
	sum := 0
	for i := 0; i < 7; i++ {
		d := ico[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * (8 - i)
	}
	last := ico[7]
	if last < '0' || last > '9' {
		return false
	}
	check := (11 - sum%11) % 10
	return int(last-'0') == check
}
