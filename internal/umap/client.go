// Package umap is the client for the UMap service, the record source
// every dataset handler fetches from. Responses are schema-validated
// before decoding; transient failures are retried with exponential
// backoff; paginated endpoints are drained page by page.
package umap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/biofetch/internal/otel"
	"github.com/basket/biofetch/internal/shared"
)

// DefaultBaseURL is the production service root.
const DefaultBaseURL = "https://indupro-apps.com/umap-service/api/v1/"

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = time.Second
	defaultPageSize     = 1000
	defaultPostPageSize = 10
)

// APIError is a non-success response from the service, after retries
// for the transient status codes have been exhausted.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("umap: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// retryableStatus are the codes worth retrying: rate limiting and
// transient server-side failures.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Config carries the client settings. Zero values fall back to the
// production defaults.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	PageSize     int
	PostPageSize int
	Logger       *slog.Logger
	Tracer       trace.Tracer // may be nil
}

// Client talks to the UMap service.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	retries      int
	retryDelay   time.Duration
	pageSize     int
	postPageSize int
	logger       *slog.Logger
	tracer       trace.Tracer
	schemas      map[string]*jsonschema.Schema
}

// New builds a client and compiles the response schemas.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PostPageSize <= 0 {
		cfg.PostPageSize = defaultPostPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = nooptrace.NewTracerProvider().Tracer(otel.TracerName)
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("compile response schemas: %w", err)
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		retries:      cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		pageSize:     cfg.PageSize,
		postPageSize: cfg.PostPageSize,
		logger:       cfg.Logger.With("component", "umap"),
		tracer:       cfg.Tracer,
		schemas:      schemas,
	}, nil
}

// do issues one request, wrapped in a client span carrying the gene
// and dataset the call belongs to when a run put them in the context.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if s := shared.Symbol(ctx); s != "" {
		attrs = append(attrs, otel.AttrSymbol.String(s))
	}
	if d := shared.Dataset(ctx); d != "" {
		attrs = append(attrs, otel.AttrDataset.String(d))
	}
	ctx, span := otel.StartClientSpan(ctx, c.tracer, method+" "+endpoint, attrs...)
	defer span.End()

	out, err := c.send(ctx, method, endpoint, params, body)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

// send runs the retry loop. The request is rebuilt per attempt so the
// body reader is never reused.
func (c *Client) send(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", endpoint, err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt >= c.retries {
				return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
			}
			c.logger.Warn("request failed, retrying",
				"endpoint", endpoint, "attempt", attempt+1, "error", err,
				"trace_id", shared.TraceID(ctx))
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return nil, fmt.Errorf("read response %s: %w", endpoint, readErr)
			}
			return respBody, nil
		}

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       truncate(string(respBody), 512),
		}
		if !retryableStatus(resp.StatusCode) || attempt >= c.retries {
			return nil, apiErr
		}
		c.logger.Warn("transient status, retrying",
			"endpoint", endpoint, "attempt", attempt+1, "status", resp.StatusCode,
			"trace_id", shared.TraceID(ctx))
		if err := c.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// backoff sleeps 1s, 2s, 4s across successive attempts, honoring
// cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.retryDelay << attempt
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, params url.Values, body any) ([]byte, error) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body for %s: %w", endpoint, err)
		}
	}
	return c.do(ctx, http.MethodPost, endpoint, params, data)
}

// validate checks a response body against a compiled endpoint schema.
func (c *Client) validate(schemaName string, body []byte) error {
	schema, ok := c.schemas[schemaName]
	if !ok {
		return fmt.Errorf("no schema registered for %s", schemaName)
	}
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// validator requires for integer checks.
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("response failed %s schema: %w", schemaName, err)
	}
	return nil
}

type pageEnvelope struct {
	CurrentPage int             `json:"current_page"`
	NextPage    *int            `json:"next_page"`
	PageSize    int             `json:"page_size"`
	TotalItems  int             `json:"total_items"`
	TotalPages  int             `json:"total_pages"`
	Data        json.RawMessage `json:"data"`
}

// paginate drains a paginated endpoint: page_request starts at 1 and
// follows next_page until it drops below 1. Each page body is schema
// validated, then its data array is handed to collect.
func (c *Client) paginate(ctx context.Context, method, endpoint string, params url.Values, body any, pageSize int, schemaName string, collect func(json.RawMessage) error) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("page_size", strconv.Itoa(pageSize))
	page := 1
	for {
		params.Set("page_request", strconv.Itoa(page))

		var raw []byte
		var err error
		if method == http.MethodPost {
			raw, err = c.post(ctx, endpoint, params, body)
		} else {
			raw, err = c.get(ctx, endpoint, params)
		}
		if err != nil {
			return err
		}
		if err := c.validate(schemaName, raw); err != nil {
			return fmt.Errorf("%s page %d: %w", endpoint, page, err)
		}

		var env pageEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode %s page %d: %w", endpoint, page, err)
		}
		if err := collect(env.Data); err != nil {
			return fmt.Errorf("decode %s page %d: %w", endpoint, page, err)
		}
		if env.NextPage == nil || *env.NextPage < 1 {
			return nil
		}
		page = *env.NextPage
	}
}

// CellLineProteomics returns every whole-cell-extract measurement for
// a protein across cell lines.
func (c *Client) CellLineProteomics(ctx context.Context, uniprotkbAC string) ([]CellLineProteomics, error) {
	params := url.Values{"uniprotkb_ac": {uniprotkbAC}}
	var out []CellLineProteomics
	err := c.paginate(ctx, http.MethodGet, "dia/cell-line", params, nil, c.pageSize, schemaCellLineProteomics, func(data json.RawMessage) error {
		var page []CellLineProteomics
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// TissueProteomics returns every tissue-sample measurement for a
// protein.
func (c *Client) TissueProteomics(ctx context.Context, uniprotkbAC string) ([]TissueSampleIntensity, error) {
	params := url.Values{"uniprotkb_ac": {uniprotkbAC}}
	var out []TissueSampleIntensity
	err := c.paginate(ctx, http.MethodGet, "dia/tissue-sample", params, nil, c.pageSize, schemaTissueSamples, func(data json.RawMessage) error {
		var page []TissueSampleIntensity
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// TissueProteomicsByType returns tissue measurements for a tissue and
// experiment type across all proteins.
func (c *Client) TissueProteomicsByType(ctx context.Context, tissueType, experimentType string) ([]TissueSampleIntensity, error) {
	params := url.Values{
		"tissue_type":     {tissueType},
		"experiment_type": {experimentType},
	}
	var out []TissueSampleIntensity
	err := c.paginate(ctx, http.MethodPost, "dia/tissue-sample/tissue-type", params, nil, c.postPageSize, schemaTissueSamples, func(data json.RawMessage) error {
		var page []TissueSampleIntensity
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// ReciprocalMicroMap returns the reciprocal proximity measurements
// between a target and a proximal protein.
func (c *Client) ReciprocalMicroMap(ctx context.Context, targetAC, proximalAC string) ([]ReciprocalMicroMap, error) {
	params := url.Values{
		"target_uniprotkb_ac":   {targetAC},
		"proximal_uniprotkb_ac": {proximalAC},
	}
	var out []ReciprocalMicroMap
	err := c.paginate(ctx, http.MethodPost, "replicate-sets/reciprocal_micro_map", params, nil, c.postPageSize, schemaReciprocal, func(data json.RawMessage) error {
		var page []ReciprocalMicroMap
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// CellLines lists the whole-cell-extract cell lines the service has
// measured.
func (c *Client) CellLines(ctx context.Context) ([]CellLineSummary, error) {
	raw, err := c.get(ctx, "dia/cell-lines/WHOLE_CELL_EXTRACT", nil)
	if err != nil {
		return nil, err
	}
	if err := c.validate(schemaCellLines, raw); err != nil {
		return nil, err
	}
	var out []CellLineSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode cell lines: %w", err)
	}
	return out, nil
}

// GeneExpression returns every pancancer RNA expression sample for the
// given accessions, tumor and normal alike.
func (c *Client) GeneExpression(ctx context.Context, uniprotkbACs []string) ([]GeneExpression, error) {
	body := map[string]any{
		"uniprotkb_acs": uniprotkbACs,
		"ensembl_ids":   []string{},
		"primary_sites": []string{},
		"sample_types":  []string{},
	}
	var out []GeneExpression
	err := c.paginate(ctx, http.MethodPost, "pancancer/", nil, body, c.pageSize, schemaGeneExpression, func(data json.RawMessage) error {
		var page []GeneExpression
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// NormalExpression returns normal-tissue proteomics measurements for a
// protein.
func (c *Client) NormalExpression(ctx context.Context, uniprotkbAC string) ([]NormalExpression, error) {
	params := url.Values{"uniprotkb_ac": {uniprotkbAC}}
	raw, err := c.get(ctx, "normal-expression/protein", params)
	if err != nil {
		return nil, err
	}
	if err := c.validate(schemaNormalExpression, raw); err != nil {
		return nil, err
	}
	var out []NormalExpression
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode normal expression: %w", err)
	}
	return out, nil
}

// NormalExpressionBounds returns the global bounds of the normal
// proteomics compendium.
func (c *Client) NormalExpressionBounds(ctx context.Context) (map[string]float64, error) {
	raw, err := c.get(ctx, "normal-expression/bounds", nil)
	if err != nil {
		return nil, err
	}
	if err := c.validate(schemaBounds, raw); err != nil {
		return nil, err
	}
	var out map[string]float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode bounds: %w", err)
	}
	return out, nil
}

// GeneExpressionBounds returns expression bounds for the given studies.
func (c *Client) GeneExpressionBounds(ctx context.Context, studies []string, isCancer bool) (map[string]float64, error) {
	params := url.Values{"is_cancer": {strconv.FormatBool(isCancer)}}
	raw, err := c.post(ctx, "pancancer/bounds", params, studies)
	if err != nil {
		return nil, err
	}
	if err := c.validate(schemaBounds, raw); err != nil {
		return nil, err
	}
	var out map[string]float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode bounds: %w", err)
	}
	return out, nil
}

// ExternalExpression returns external study measurements for the given
// accessions.
func (c *Client) ExternalExpression(ctx context.Context, uniprotkbACs []string) ([]ExternalExpression, error) {
	params := url.Values{"uniprotkb_acs": uniprotkbACs}
	var out []ExternalExpression
	err := c.paginate(ctx, http.MethodGet, "external/study/data", params, nil, c.pageSize, schemaExternalExpression, func(data json.RawMessage) error {
		var page []ExternalExpression
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// StudyMetadata lists the external proteomics studies.
func (c *Client) StudyMetadata(ctx context.Context) ([]StudyMetadata, error) {
	var out []StudyMetadata
	err := c.paginate(ctx, http.MethodGet, "external/study/metadata", nil, nil, c.pageSize, schemaStudyMetadata, func(data json.RawMessage) error {
		var page []StudyMetadata
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// PrimarySites returns every primary site the pancancer compendium
// knows.
func (c *Client) PrimarySites(ctx context.Context) ([]string, error) {
	raw, err := c.get(ctx, "pancancer/indications", nil)
	if err != nil {
		return nil, err
	}
	if err := c.validate(schemaPrimarySites, raw); err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode primary sites: %w", err)
	}
	return out, nil
}

// DepMap returns DepMap measurements for the given accessions,
// optionally filtered to CCLE model ids.
func (c *Client) DepMap(ctx context.Context, uniprotkbACs, ccleModelIDs []string) ([]DepMap, error) {
	if ccleModelIDs == nil {
		ccleModelIDs = []string{}
	}
	body := map[string]any{
		"uniprotkb_acs":  uniprotkbACs,
		"ccle_model_ids": ccleModelIDs,
	}
	var out []DepMap
	err := c.paginate(ctx, http.MethodPost, "depmap/", nil, body, c.pageSize, schemaDepMap, func(data json.RawMessage) error {
		var page []DepMap
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// ReplicateSets lists every replicate set the service knows.
func (c *Client) ReplicateSets(ctx context.Context) ([]ReplicateSet, error) {
	var out []ReplicateSet
	err := c.paginate(ctx, http.MethodGet, "replicate-sets/", nil, nil, c.pageSize, schemaReplicateSets, func(data json.RawMessage) error {
		var page []ReplicateSet
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// AnalysisResults returns the protein-level results of one replicate
// set.
func (c *Client) AnalysisResults(ctx context.Context, replicateSetID int64) ([]AnalysisResult, error) {
	params := url.Values{"replicate_set_id": {strconv.FormatInt(replicateSetID, 10)}}
	var out []AnalysisResult
	err := c.paginate(ctx, http.MethodGet, "replicate-sets/analysis-results", params, nil, c.pageSize, schemaAnalysisResults, func(data json.RawMessage) error {
		var page []AnalysisResult
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

// MapProteins resolves gene symbols to protein mappings.
func (c *Client) MapProteins(ctx context.Context, symbols []string) ([]ProteinMapping, error) {
	body := map[string]any{
		"protein_ids":   []string{},
		"uniprotkb_acs": []string{},
		"symbols":       symbols,
	}
	raw, err := c.post(ctx, "proteins/mapping", nil, body)
	if err != nil {
		return nil, err
	}
	if err := c.validate(schemaProteinMappings, raw); err != nil {
		return nil, err
	}
	var env struct {
		Data []ProteinMapping `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode protein mappings: %w", err)
	}
	return env.Data, nil
}

// SymbolTable folds mappings into primary symbol to accession.
// Mappings without both fields are dropped.
func SymbolTable(mappings []ProteinMapping) map[string]string {
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.UniProtKBAC == "" || m.PrimarySymbol == "" {
			continue
		}
		out[m.PrimarySymbol] = m.UniProtKBAC
	}
	return out
}
