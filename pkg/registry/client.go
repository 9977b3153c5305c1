// Package registry provides HTTP clients for the curation data service. The
// registry hosts the user directory, the hydrated record graphs, and the
// per-object update endpoints the transfer engine writes through.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clingen-curation-server/internal/domain"
)

// updateRoutes maps item types to their registry update endpoints.
var updateRoutes = map[string]string{
	"gdm":                       "/gdms",
	"annotation":                "/annotations",
	"group":                     "/groups",
	"family":                    "/families",
	"individual":                "/individuals",
	"experimental":              "/experimental",
	"caseControl":               "/casecontrol",
	"evidenceScore":             "/evidencescore",
	"variantScore":              "/variantscore",
	"provisionalClassification": "/provisional-classifications",
	"pathogenicity":             "/pathogenicity",
	"interpretation":            "/interpretations",
	"evaluation":                "/evaluations",
	"curated-evidence":          "/curated-evidences",
}

// Client talks to the curation data service. It implements UserDirectory,
// CurationLoader, InterpretationFinder, and ObjectStore.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCount int
	log        *logrus.Logger
}

// NewClient creates a registry client from configuration.
func NewClient(config *domain.RegistryConfig, log *logrus.Logger) *Client {
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	return &Client{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:    rate.NewLimiter(limit, 1),
		retryCount: config.RetryCount,
		log:        log,
	}
}

// LookupUserPKByEmail resolves a contributor email to a user PK. The registry
// returns a list; the first entry wins. An empty list means ErrNotFound.
func (c *Client) LookupUserPKByEmail(ctx context.Context, email string) (string, error) {
	var users []struct {
		PK string `json:"PK"`
	}
	params := url.Values{"email": {email}}
	if err := c.getJSON(ctx, "/users?"+params.Encode(), &users); err != nil {
		return "", fmt.Errorf("failed to query user directory: %w", err)
	}
	if len(users) == 0 || users[0].PK == "" {
		return "", domain.ErrNotFound
	}
	return users[0].PK, nil
}

// gdmPayload shadows the embedded pathogenicity list with the list of PKs the
// registry actually returns on the root document.
type gdmPayload struct {
	domain.GDM
	PathogenicityPKs []string `json:"variantPathogenicity"`
}

// LoadGDM fetches a gene-disease record and hydrates its annotation and
// pathogenicity graphs.
func (c *Client) LoadGDM(ctx context.Context, pk string) (*domain.GDM, error) {
	var payload gdmPayload
	if err := c.getJSON(ctx, "/gdms/"+url.PathEscape(pk), &payload); err != nil {
		return nil, fmt.Errorf("failed to load GDM %s: %w", pk, err)
	}
	if payload.ItemType != "gdm" {
		return nil, domain.ErrNotFound
	}

	gdm := payload.GDM
	if err := c.getJSON(ctx, "/annotations?associatedGdm="+url.QueryEscape(pk), &gdm.Annotations); err != nil {
		return nil, fmt.Errorf("failed to load GDM annotations: %w", err)
	}

	gdm.VariantPathogenicity = nil
	for _, pathPK := range payload.PathogenicityPKs {
		var pathogenicity domain.Pathogenicity
		if err := c.getJSON(ctx, "/pathogenicity/"+url.PathEscape(pathPK), &pathogenicity); err != nil {
			return nil, fmt.Errorf("failed to load GDM pathogenicity %s: %w", pathPK, err)
		}
		gdm.VariantPathogenicity = append(gdm.VariantPathogenicity, pathogenicity)
	}

	c.log.WithFields(logrus.Fields{
		"gdm":             pk,
		"annotations":     len(gdm.Annotations),
		"pathogenicities": len(gdm.VariantPathogenicity),
	}).Debug("Loaded GDM graph from registry")

	return &gdm, nil
}

// interpretationPayload shadows the embedded evidence lists with the lists of
// PKs the registry returns on the root document.
type interpretationPayload struct {
	domain.Interpretation
	EvaluationPKs      []string `json:"evaluations"`
	CuratedEvidencePKs []string `json:"curated_evidence_list"`
}

// LoadInterpretation fetches a variant interpretation and hydrates its
// evaluations and curated evidences.
func (c *Client) LoadInterpretation(ctx context.Context, pk string) (*domain.Interpretation, error) {
	var payload interpretationPayload
	params := url.Values{"PK": {pk}}
	if err := c.getJSON(ctx, "/interpretations?"+params.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("failed to load interpretation %s: %w", pk, err)
	}
	if payload.ItemType != "interpretation" {
		return nil, domain.ErrNotFound
	}

	interp := payload.Interpretation
	interp.Evaluations = nil
	for _, evalPK := range payload.EvaluationPKs {
		var eval domain.Evaluation
		if err := c.getJSON(ctx, "/evaluations/"+url.PathEscape(evalPK), &eval); err != nil {
			return nil, fmt.Errorf("failed to load interpretation evaluation %s: %w", evalPK, err)
		}
		interp.Evaluations = append(interp.Evaluations, eval)
	}

	interp.CuratedEvidences = nil
	for _, evidencePK := range payload.CuratedEvidencePKs {
		var evidence domain.CuratedEvidence
		if err := c.getJSON(ctx, "/curated-evidences/"+url.PathEscape(evidencePK), &evidence); err != nil {
			return nil, fmt.Errorf("failed to load interpretation curated evidence %s: %w", evidencePK, err)
		}
		interp.CuratedEvidences = append(interp.CuratedEvidences, evidence)
	}

	c.log.WithFields(logrus.Fields{
		"interpretation":    pk,
		"evaluations":       len(interp.Evaluations),
		"curated_evidences": len(interp.CuratedEvidences),
	}).Debug("Loaded interpretation graph from registry")

	return &interp, nil
}

// FindInterpretations runs the live duplicate-interpretation query.
func (c *Client) FindInterpretations(ctx context.Context, filter domain.InterpretationFilter) ([]domain.Interpretation, error) {
	params := url.Values{"variant": {filter.Variant}}
	if filter.Affiliation != "" {
		params.Set("affiliation", filter.Affiliation)
	} else {
		params.Set("submitted_by", filter.SubmittedBy)
	}

	var found []domain.Interpretation
	if err := c.getJSON(ctx, "/interpretations?"+params.Encode(), &found); err != nil {
		return nil, fmt.Errorf("failed to query interpretations: %w", err)
	}
	return found, nil
}

// UpdateObject applies one ownership update through the item type's endpoint.
// The registry expects the document wrapped in a newObj envelope.
func (c *Client) UpdateObject(ctx context.Context, update domain.ObjectUpdate) error {
	route, ok := updateRoutes[update.ItemType]
	if !ok {
		return fmt.Errorf("no update endpoint for item type %q", update.ItemType)
	}

	body, err := json.Marshal(map[string]interface{}{"newObj": update})
	if err != nil {
		return fmt.Errorf("failed to encode update for %s: %w", update.PK, err)
	}

	if err := c.do(ctx, http.MethodPut, route+"/"+url.PathEscape(update.PK), body, nil); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", update.ItemType, update.PK, err)
	}
	return nil
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if attempt > 0 {
			c.log.WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt,
			}).Debug("Retrying registry request")
		}

		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		// Not found is definitive, not transient
		if lastErr == domain.ErrNotFound || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	if out == nil {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// healthCheckTimeout bounds the registry liveness probe.
const healthCheckTimeout = 5 * time.Second

// Health probes the registry's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
