// Package cdli is a client for the CDLI (Cuneiform Digital Library Initiative)
// REST API at https://cdli.earth. The API serves tablet metadata, transliterated
// inscriptions, bibliography, and tabular exports, with the representation
// negotiated through the Accept header.
package cdli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production CDLI endpoint.
const DefaultBaseURL = "https://cdli.earth"

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	userAgent         = "ancientgrok/0.1.0"
)

// Client talks to the CDLI REST API. All methods are safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	maxRetries    uint64
	retryInterval time.Duration
	logger        zerolog.Logger
}

// NewClient creates a client against the production CDLI endpoint.
func NewClient(logger zerolog.Logger) *Client {
	return NewClientWithBaseURL(DefaultBaseURL, logger)
}

// NewClientWithBaseURL creates a client against a custom endpoint.
// Used primarily for testing.
func NewClientWithBaseURL(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		maxRetries:    defaultMaxRetries,
		retryInterval: 500 * time.Millisecond,
		logger:        logger,
	}
}

// SearchResult is one page of search or listing results.
type SearchResult struct {
	Total   int
	Page    int
	PerPage int
	Results []map[string]interface{}
}

// SearchQuery is a full-text search with optional filters.
type SearchQuery struct {
	Query   string
	Filters map[string]string // period, genre, language, ...
	Page    int
	PerPage int
}

// AdvancedQuery searches specific fields. Empty fields are omitted.
type AdvancedQuery struct {
	Designation string
	Period      string
	Provenience string
	Genre       string
	Language    string
	Collection  string
	Material    string
	Inscription string
	Page        int
	PerPage     int
}

// NormalizePNumber ensures the "P" prefix on a tablet identifier, so callers
// can pass either "P000001" or "000001".
func NormalizePNumber(id string) string {
	if id == "" || strings.HasPrefix(id, "P") {
		return id
	}
	return "P" + id
}

// GetEntity fetches one entity in the requested format and returns the raw
// payload.
func (c *Client) GetEntity(ctx context.Context, entityType EntityType, id string, format Format) ([]byte, error) {
	path := "/" + string(entityType) + "/" + url.PathEscape(id)
	return c.get(ctx, path, nil, format.MIME())
}

// GetArtifact fetches artifact metadata as decoded JSON. The identifier may
// be a bare number or a P-number.
func (c *Client) GetArtifact(ctx context.Context, id string) (map[string]interface{}, error) {
	raw, err := c.GetEntity(ctx, EntityArtifact, NormalizePNumber(id), FormatJSON)
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

// GetTablet fetches tablet metadata as decoded JSON.
func (c *Client) GetTablet(ctx context.Context, id string) (map[string]interface{}, error) {
	raw, err := c.GetEntity(ctx, EntityTablet, NormalizePNumber(id), FormatJSON)
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

// GetInscription fetches a tablet's inscription text (ATF by default; CoNLL
// variants via format).
func (c *Client) GetInscription(ctx context.Context, tabletID string, format Format) (string, error) {
	path := "/" + string(EntityTablet) + "/" + url.PathEscape(NormalizePNumber(tabletID))
	raw, err := c.get(ctx, path, nil, format.MIME())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// GetInscriptionVersion fetches one specific inscription version by its own
// identifier rather than by tablet.
func (c *Client) GetInscriptionVersion(ctx context.Context, inscriptionID string, format Format) (string, error) {
	raw, err := c.get(ctx, "/inscription/"+url.PathEscape(inscriptionID), nil, format.MIME())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// GetBibliography fetches an entity's bibliography. For FormatCitation a CSL
// style (apa, chicago-author-date, mla, harvard1) can be requested.
func (c *Client) GetBibliography(ctx context.Context, entityType EntityType, id string, format Format, style string) (string, error) {
	var query url.Values
	if style != "" && format == FormatCitation {
		query = url.Values{"style": []string{style}}
	}
	path := "/" + string(entityType) + "/" + url.PathEscape(id)
	raw, err := c.get(ctx, path, query, format.MIME())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ExportArtifacts fetches multiple artifacts in one call using the URL ID
// query (comma-joined P/Q/S numbers).
func (c *Client) ExportArtifacts(ctx context.Context, ids []string, format Format) ([]byte, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no artifact ids given")
	}
	normalized := make([]string, len(ids))
	for i, id := range ids {
		normalized[i] = NormalizePNumber(id)
	}
	return c.get(ctx, "/"+strings.Join(normalized, ","), nil, format.MIME())
}

// Export fetches a paginated listing of an entity collection in a tabular
// format (CSV, TSV, or XLSX).
func (c *Client) Export(ctx context.Context, entityType EntityType, format Format, page, perPage int) ([]byte, error) {
	return c.get(ctx, "/"+string(entityType), pageQuery(page, perPage), format.MIME())
}

// Search runs a full-text search across the catalogue.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	page, perPage := defaultPaging(q.Page, q.PerPage)
	query := pageQuery(page, perPage)
	query.Set("q", q.Query)
	for k, v := range q.Filters {
		if v != "" {
			query.Set(k, v)
		}
	}

	raw, err := c.get(ctx, "/search", query, FormatJSON.MIME())
	if err != nil {
		return nil, err
	}
	return parseSearchResult(raw, page, perPage)
}

// AdvancedSearch runs a field-specific search.
func (c *Client) AdvancedSearch(ctx context.Context, q AdvancedQuery) (*SearchResult, error) {
	page, perPage := defaultPaging(q.Page, q.PerPage)
	query := pageQuery(page, perPage)
	for k, v := range map[string]string{
		"designation": q.Designation,
		"period":      q.Period,
		"provenience": q.Provenience,
		"genre":       q.Genre,
		"language":    q.Language,
		"collection":  q.Collection,
		"material":    q.Material,
		"inscription": q.Inscription,
	} {
		if v != "" {
			query.Set(k, v)
		}
	}

	raw, err := c.get(ctx, "/search/advanced", query, FormatJSON.MIME())
	if err != nil {
		return nil, err
	}
	return parseSearchResult(raw, page, perPage)
}

// ListEntities fetches one page of an entity collection (periods, genres,
// proveniences, ...).
func (c *Client) ListEntities(ctx context.Context, entityType EntityType, page, perPage int) (*SearchResult, error) {
	page, perPage = defaultPaging(page, perPage)
	raw, err := c.get(ctx, "/"+string(entityType), pageQuery(page, perPage), FormatJSON.MIME())
	if err != nil {
		return nil, err
	}
	return parseSearchResult(raw, page, perPage)
}

// DownloadToFile fetches an API path in the given format and writes the
// payload to outputPath, creating parent directories as needed.
func (c *Client) DownloadToFile(ctx context.Context, apiPath string, format Format, outputPath string) error {
	raw, err := c.get(ctx, apiPath, nil, format.MIME())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	c.logger.Info().Str("path", outputPath).Int("bytes", len(raw)).Msg("Downloaded CDLI content")
	return nil
}

// ImageURL constructs the URL of a tablet image. Thumbnails live under a
// tn_-prefixed directory, and line art carries an _l suffix.
func (c *Client) ImageURL(tabletID string, imageType ImageType, thumbnail bool) string {
	id := NormalizePNumber(tabletID)
	dir := string(ImagePhoto)
	suffix := ""
	if imageType == ImageLineart {
		dir = string(ImageLineart)
		suffix = "_l"
	}
	if thumbnail {
		dir = "tn_" + dir
	}
	return fmt.Sprintf("%s/dl/%s/%s%s.jpg", c.baseURL, dir, id, suffix)
}

// DownloadImage fetches a tablet image and writes it to outputPath. If
// outputPath is empty a name is derived from the tablet ID.
func (c *Client) DownloadImage(ctx context.Context, tabletID string, imageType ImageType, thumbnail bool, outputPath string) (string, error) {
	id := NormalizePNumber(tabletID)
	if outputPath == "" {
		name := id
		if thumbnail {
			name += "_tn"
		}
		if imageType == ImageLineart {
			name += "_lineart"
		}
		outputPath = name + ".jpg"
	}

	imageURL := c.ImageURL(id, imageType, thumbnail)
	raw, err := c.get(ctx, strings.TrimPrefix(imageURL, c.baseURL), nil, "image/jpeg")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	c.logger.Info().Str("tablet", id).Str("path", outputPath).Msg("Downloaded tablet image")
	return outputPath, nil
}

// get performs one GET with retry. Network errors and 5xx responses retry
// with exponential backoff; 404 and other 4xx responses are permanent.
func (c *Client) get(ctx context.Context, path string, query url.Values, accept string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if len(query) > 0 {
			req.URL.RawQuery = query.Encode()
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("CDLI request failed, retrying")
			return fmt.Errorf("cdli request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read cdli response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, path))
		case resp.StatusCode >= 500:
			c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("CDLI server error, retrying")
			return &APIError{StatusCode: resp.StatusCode, Message: trimBody(raw)}
		case resp.StatusCode >= 400:
			return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Message: trimBody(raw)})
		}

		body = raw
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	eb.MaxInterval = 10 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func decodeObject(raw []byte) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode cdli response: %w", err)
	}
	return obj, nil
}

// parseSearchResult tolerates both response shapes CDLI uses: a bare array,
// or an envelope with results/data plus paging fields.
func parseSearchResult(raw []byte, page, perPage int) (*SearchResult, error) {
	var list []map[string]interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return &SearchResult{Total: len(list), Page: page, PerPage: perPage, Results: list}, nil
	}

	var envelope struct {
		Total   *int                     `json:"total"`
		Page    *int                     `json:"page"`
		PerPage *int                     `json:"per_page"`
		Results []map[string]interface{} `json:"results"`
		Data    []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := envelope.Results
	if results == nil {
		results = envelope.Data
	}
	out := &SearchResult{Total: len(results), Page: page, PerPage: perPage, Results: results}
	if envelope.Total != nil {
		out.Total = *envelope.Total
	}
	if envelope.Page != nil {
		out.Page = *envelope.Page
	}
	if envelope.PerPage != nil {
		out.PerPage = *envelope.PerPage
	}
	return out, nil
}

func defaultPaging(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 25
	}
	return page, perPage
}

func pageQuery(page, perPage int) url.Values {
	return url.Values{
		"page":     []string{strconv.Itoa(page)},
		"per_page": []string{strconv.Itoa(perPage)},
	}
}

func trimBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
