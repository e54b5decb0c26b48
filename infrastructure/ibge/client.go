package ibge

import (
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

	"github.com/lb-conn/nfse-dps/domain/dps"
)

const (
	// BaseURL is the IBGE localidades API.
	BaseURL = "https://servicodados.ibge.gov.br/api/v1/localidades"
	// DefaultTimeout is the default timeout for IBGE API requests
	DefaultTimeout = 10 * time.Second
)

// Client resolves municipalities through the IBGE API, one request per state.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewClient creates a new IBGE HTTP client.
// If baseURL is empty, uses the public IBGE API.
func NewClient(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		log:     log,
	}
}

type municipioResponse struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

// Municipalities lists every municipality of state.
func (c *Client) Municipalities(ctx context.Context, state string) ([]Municipality, error) {
	uf := strings.ToUpper(strings.TrimSpace(state))
	if !dps.ValidState(uf) {
		return nil, fmt.Errorf("%w: unknown state %q", ErrMunicipalityNotFound, state)
	}

	apiURL := c.baseURL + "/estados/" + url.PathEscape(uf) + "/municipios"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("Consulting IBGE API", "state", uf, "url", apiURL)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Error consulting IBGE API", "error", err, "state", uf)
		return nil, fmt.Errorf("IBGE API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Warn("IBGE API returned non-200 status", "status", resp.StatusCode, "body", string(body), "state", uf)
		return nil, fmt.Errorf("IBGE API returned status %d", resp.StatusCode)
	}

	var results []municipioResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("parse IBGE API response: %w", err)
	}

	list := make([]Municipality, 0, len(results))
	for _, r := range results {
		code := strconv.FormatInt(r.ID, 10)
		if got, ok := dps.StateOf(code); !ok || got != uf {
			c.log.Warn("IBGE API returned a code outside the state", "state", uf, "code", code)
			continue
		}
		list = append(list, Municipality{Code: code, Name: r.Nome, State: uf})
	}
	return list, nil
}

func (c *Client) ResolveMunicipality(ctx context.Context, city, state string) (string, error) {
	list, err := c.Municipalities(ctx, state)
	if err != nil {
		return "", err
	}
	key := Key(city, state)
	for _, m := range list {
		if Key(m.Name, m.State) == key {
			c.log.Debug("Successfully resolved municipality from IBGE", "city", city, "state", m.State, "code", m.Code)
			return m.Code, nil
		}
	}
	c.log.Warn("Municipality not found in IBGE", "city", city, "state", state)
	return "", fmt.Errorf("%w: %s/%s", ErrMunicipalityNotFound, city, state)
}
