// ==============================================================================
// SCREENING PROVIDERS - internal/screening/provider.go
// ==============================================================================
// Package screening supplies sanctions/PEP/adverse-media lookups for
// onboarding principals. Two providers are available: a vendor-backed
// HTTP client and a local list provider for development and testing.
package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"onboard/internal/domain"
	"onboard/pkg/errors"
	"onboard/pkg/logger"
)

// VendorClient screens principals against an external provider's
// REST API. One request covers the whole batch.
type VendorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

func NewVendorClient(baseURL, apiKey string, log logger.Logger) *VendorClient {
	return &VendorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  log,
	}
}

type screenRequest struct {
	Subjects []screenSubject `json:"subjects"`
}

type screenSubject struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type screenResponse struct {
	Results []domain.ScreeningResult `json:"results"`
}

func (c *VendorClient) Screen(ctx context.Context, principals []domain.Principal) ([]domain.ScreeningResult, error) {
	req := screenRequest{Subjects: make([]screenSubject, 0, len(principals))}
	for _, p := range principals {
		req.Subjects = append(req.Subjects, screenSubject{Name: p.FullName, Role: string(p.Role)})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode screening request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/screen", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build screening request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "screening provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screening provider returned status %d", resp.StatusCode)
	}

	var out screenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to decode screening response")
	}

	c.logger.Info("Screening batch completed", map[string]interface{}{
		"subjects": len(principals),
		"results":  len(out.Results),
	})
	return out.Results, nil
}

// ListProvider screens against in-memory name lists. Matching is
// case-insensitive on the full name. Names absent from every list
// come back clean.
type ListProvider struct {
	pep       map[string]bool
	sanctions map[string]bool
	adverse   map[string]bool
}

func NewListProvider(pepNames, sanctionedNames, adverseNames []string) *ListProvider {
	toSet := func(names []string) map[string]bool {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" {
				set[n] = true
			}
		}
		return set
	}
	return &ListProvider{
		pep:       toSet(pepNames),
		sanctions: toSet(sanctionedNames),
		adverse:   toSet(adverseNames),
	}
}

func (p *ListProvider) Screen(_ context.Context, principals []domain.Principal) ([]domain.ScreeningResult, error) {
	results := make([]domain.ScreeningResult, 0, len(principals))
	for _, pr := range principals {
		key := strings.ToLower(strings.TrimSpace(pr.FullName))
		results = append(results, domain.ScreeningResult{
			Name:            pr.FullName,
			HasPEPHit:       p.pep[key],
			HasSanctionsHit: p.sanctions[key],
			HasAdverseMedia: p.adverse[key],
		})
	}
	return results, nil
}
