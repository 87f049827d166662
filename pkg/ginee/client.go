package ginee

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// uriListStock is the warehouse stock listing endpoint.
const uriListStock = "/openapi/warehouse-inventory/v1/sku/list"

// defaultPageSize bounds one stock listing page.
const defaultPageSize = 100

// Config holds the credentials and base URL for a Ginee client.
type Config struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	Country   string
}

// Client is a minimal HTTP client for the Ginee marketplace API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	secretKey  string
	country    string
	debug      bool
}

// NewClient constructs a new Ginee client with sane defaults.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.BaseURL,
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		country:    cfg.Country,
		debug:      os.Getenv("ENV") == "development",
	}
}

// sign computes the request signature per Ginee spec:
// base64(HMAC-SHA256(secretKey, "<METHOD>$<URI>$")).
func (c *Client) sign(method, uri string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(method + "$" + uri + "$"))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// authorization builds the Authorization header value for a call.
func (c *Client) authorization(method, uri string) string {
	return c.accessKey + ":" + c.sign(method, uri)
}

// ListStock fetches one page of warehouse stock records. Page numbering
// starts at 0 per the API convention.
func (c *Client) ListStock(ctx context.Context, page, size int) ([]StockRecord, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	env, err := c.doRequest(ctx, http.MethodPost, uriListStock, listStockRequest{Page: page, Size: size})
	if err != nil {
		return nil, err
	}
	records, err := ExtractStockRecords(env.Data)
	if err != nil {
		return nil, fmt.Errorf("ginee stock page %d: %w", page, err)
	}
	return records, nil
}

// ListAllStock pages through the stock listing until a short page signals
// the end.
func (c *Client) ListAllStock(ctx context.Context) ([]StockRecord, error) {
	var all []StockRecord
	for page := 0; ; page++ {
		records, err := c.ListStock(ctx, page, defaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if len(records) < defaultPageSize {
			return all, nil
		}
	}
}

// doRequest performs a signed HTTP request and decodes the response
// envelope. A non-SUCCESS envelope code is an error carrying the upstream
// message.
func (c *Client) doRequest(ctx context.Context, method, uri string, body any) (*Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", c.baseURL+uri).
			RawJSON("request", payload).
			Msg("[GINEE] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+uri, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authorization(method, uri))
	req.Header.Set("X-Advai-Country", c.country)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", uri).
			Int("status_code", resp.StatusCode).
			RawJSON("response", respBody).
			Msg("[GINEE] Incoming response")
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != CodeSuccess {
		return nil, fmt.Errorf("ginee error %s: %s", env.Code, env.Message)
	}
	return &env, nil
}
