package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/retry"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

const (
	cloudflareBaseURL = "https://api.cloudflare.com/client/v4"
	cloudflareTimeout = 30 * time.Second
)

var _ Zones = (*CloudflareProvider)(nil)

// CloudflareProvider implements Zones against the Cloudflare API v4 with a
// scoped API token (Zone:Read and DNS:Edit).
type CloudflareProvider struct {
	token   string
	baseURL string
	client  *http.Client
	backoff retry.Backoff
}

// NewCloudflareProvider creates a CloudflareProvider for token.
func NewCloudflareProvider(token string) *CloudflareProvider {
	return &CloudflareProvider{
		token:   token,
		baseURL: cloudflareBaseURL,
		client:  &http.Client{Timeout: cloudflareTimeout},
		backoff: retry.API,
	}
}

// RegisterCloudflare registers the Cloudflare factory with the registry.
func RegisterCloudflare() {
	Register("cloudflare", func(store auth.Store) (Zones, error) {
		token, err := store.GetToken("cloudflare")
		if err != nil {
			return nil, fmt.Errorf("cloudflare auth: token not found (run 'fleet auth login cloudflare'): %w", err)
		}
		return NewCloudflareProvider(token), nil
	})
}

func (c *CloudflareProvider) DisplayName() string {
	return "Cloudflare"
}

type cfEnvelope[T any] struct {
	Success bool      `json:"success"`
	Errors  []cfError `json:"errors"`
	Result  T         `json:"result"`
}

type cfError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cfResultInfo struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

type cfListEnvelope[T any] struct {
	Success    bool         `json:"success"`
	Errors     []cfError    `json:"errors"`
	Result     []T          `json:"result"`
	ResultInfo cfResultInfo `json:"result_info"`
}

type cfZone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type cfDNSRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

type cfCreateRecordBody struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl,omitempty"`
}

// envelopeError maps a failed response onto a *domain.ProviderError with
// the matching sentinel.
func envelopeError(op string, success bool, errs []cfError, httpStatus int) error {
	if success {
		return nil
	}

	perr := &domain.ProviderError{Message: fmt.Sprintf("%s: %s", op, cfErrorString(errs))}
	if len(errs) > 0 {
		perr.Code = strconv.Itoa(errs[0].Code)
	}

	switch httpStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		perr.Err = domain.ErrUnauthorized
	case http.StatusNotFound:
		perr.Err = domain.ErrNotFound
	case http.StatusTooManyRequests:
		perr.Err = domain.ErrRateLimited
	case http.StatusConflict:
		perr.Err = domain.ErrConflict
	}
	if perr.Err != nil {
		return perr
	}

	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		switch {
		case e.Code == 9109 || e.Code == 10000 || strings.Contains(msg, "authentication"):
			perr.Err = domain.ErrUnauthorized
		case e.Code == 81044 || strings.Contains(msg, "not found"):
			perr.Err = domain.ErrNotFound
		case e.Code == 81057 || e.Code == 81053 || strings.Contains(msg, "already exists"):
			perr.Err = domain.ErrConflict
		}
		if perr.Err != nil {
			break
		}
	}
	return perr
}

func cfErrorString(errs []cfError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("[%d] %s", e.Code, e.Message))
	}
	return strings.Join(msgs, "; ")
}

// do sends a JSON request and decodes the response into out, returning the
// HTTP status for error mapping.
func (c *CloudflareProvider) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("cloudflare: failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("cloudflare: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &domain.ProviderError{Message: "cloudflare: request failed", Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &domain.ProviderError{
			Message: fmt.Sprintf("cloudflare: failed to decode response (HTTP %d)", resp.StatusCode),
			Err:     err,
		}
	}
	return resp.StatusCode, nil
}

// read retries an idempotent request while Cloudflare throttles it or the
// transport fails.
func (c *CloudflareProvider) read(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, c.backoff, func(err error) bool {
		return errors.Is(err, domain.ErrRateLimited) || retry.Transient(err)
	}, fn)
}

func (c *CloudflareProvider) listZones(ctx context.Context, query url.Values) ([]domain.Zone, error) {
	var zones []domain.Zone
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", "50")

		var out cfListEnvelope[cfZone]
		err := c.read(ctx, func() error {
			out = cfListEnvelope[cfZone]{}
			status, err := c.do(ctx, http.MethodGet, "/zones?"+q.Encode(), nil, &out)
			if err != nil {
				return err
			}
			return envelopeError("list zones", out.Success, out.Errors, status)
		})
		if err != nil {
			return nil, err
		}
		for _, z := range out.Result {
			zones = append(zones, domain.Zone{ID: z.ID, Name: z.Name, Status: z.Status})
		}
		if page >= out.ResultInfo.TotalPages {
			return zones, nil
		}
	}
}

// ListZones returns every zone in the account.
func (c *CloudflareProvider) ListZones(ctx context.Context) ([]domain.Zone, error) {
	return c.listZones(ctx, nil)
}

// GetZoneByName resolves a zone name to its zone.
func (c *CloudflareProvider) GetZoneByName(ctx context.Context, name string) (*domain.Zone, error) {
	zones, err := c.listZones(ctx, url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	for _, z := range zones {
		if strings.EqualFold(z.Name, name) {
			return &z, nil
		}
	}
	return nil, &domain.ProviderError{Message: fmt.Sprintf("zone %q not found", name), Err: domain.ErrNotFound}
}

// ListRecords returns all records in a zone.
func (c *CloudflareProvider) ListRecords(ctx context.Context, zoneID string) ([]domain.Record, error) {
	var records []domain.Record
	for page := 1; ; page++ {
		path := fmt.Sprintf("/zones/%s/dns_records?page=%d&per_page=100", url.PathEscape(zoneID), page)
		var out cfListEnvelope[cfDNSRecord]
		err := c.read(ctx, func() error {
			out = cfListEnvelope[cfDNSRecord]{}
			status, err := c.do(ctx, http.MethodGet, path, nil, &out)
			if err != nil {
				return err
			}
			return envelopeError("list records", out.Success, out.Errors, status)
		})
		if err != nil {
			return nil, err
		}
		for _, r := range out.Result {
			records = append(records, toRecord(r))
		}
		if page >= out.ResultInfo.TotalPages {
			return records, nil
		}
	}
}

// CreateRecord creates a record. spec.Name is the full record name.
func (c *CloudflareProvider) CreateRecord(ctx context.Context, zoneID string, spec domain.RecordSpec) (*domain.Record, error) {
	body := cfCreateRecordBody{
		Type:    spec.Type,
		Name:    spec.Name,
		Content: spec.Content,
		TTL:     spec.TTL,
	}

	var out cfEnvelope[cfDNSRecord]
	status, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(zoneID)), body, &out)
	if err != nil {
		return nil, err
	}
	if apiErr := envelopeError(fmt.Sprintf("create record %q", spec.Name), out.Success, out.Errors, status); apiErr != nil {
		return nil, apiErr
	}
	rec := toRecord(out.Result)
	return &rec, nil
}

// DeleteRecord deletes a record by ID.
func (c *CloudflareProvider) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(zoneID), url.PathEscape(recordID))
	var out cfEnvelope[struct {
		ID string `json:"id"`
	}]
	status, err := c.do(ctx, http.MethodDelete, path, nil, &out)
	if err != nil {
		return err
	}
	return envelopeError(fmt.Sprintf("delete record %s", recordID), out.Success, out.Errors, status)
}

func toRecord(r cfDNSRecord) domain.Record {
	return domain.Record{ID: r.ID, Name: r.Name, Type: r.Type, Content: r.Content, TTL: r.TTL}
}
