package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/kalambet/talentscout/internal/config"
)

// apiClient talks to the admin API of a running `talentscout serve`.
type apiClient struct {
	rest *resty.Client
}

func newClientFor(baseURL, token string) *apiClient {
	return &apiClient{rest: resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("User-Agent", "talentscout-cli").
		SetTimeout(30 * time.Second).
		SetDisableWarn(true)}
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	token, err := config.APIToken(cfg)
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	// A server bound to every interface is still reached over loopback.
	host := cfg.Server.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return newClientFor("http://"+net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)), token), nil
}

// call sends body (if any) as JSON. Only transport failures are errors here;
// HTTP statuses are checked by decodeJSON and readBody.
func (c *apiClient) call(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `talentscout serve` running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*resty.Response, error) {
	return c.call(ctx, resty.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*resty.Response, error) {
	return c.call(ctx, resty.MethodPost, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*resty.Response, error) {
	return c.call(ctx, resty.MethodDelete, path, nil)
}

// decodeJSON unmarshals a successful response into v; a nil v only checks
// the status.
func decodeJSON(resp *resty.Response, v any) error {
	if err := checkStatus(resp); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), v)
}

// readBody returns the raw body of a successful response.
func readBody(resp *resty.Response) ([]byte, error) {
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// checkStatus turns a 4xx/5xx into an error, preferring the message of the
// API's {"error":{"message":...}} envelope over the raw body.
func checkStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code < 400 {
		return nil
	}
	if msg := gjson.GetBytes(resp.Body(), "error.message").String(); msg != "" {
		return fmt.Errorf("server returned %d: %s", code, msg)
	}
	return fmt.Errorf("server returned %d: %s", code, resp.String())
}
