package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds one HTTP command.
const DefaultTimeout = 2 * time.Second

// TasmotaHTTP drives a Tasmota plug through its /cm command endpoint.
type TasmotaHTTP struct {
	base   string
	client *http.Client
}

// NewTasmotaHTTP returns an actuator for the plug at host (ip or ip:port).
func NewTasmotaHTTP(host string, timeout time.Duration) *TasmotaHTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := host
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &TasmotaHTTP{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Set sends POWER ON or POWER OFF. The response body is logged, not parsed.
func (t *TasmotaHTTP) Set(ctx context.Context, on bool) error {
	u := t.base + "/cm?cmnd=" + url.QueryEscape("POWER "+powerCommand(on))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s: %w", powerCommand(on), err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	log.Printf("relay: %s -> %d %s", powerCommand(on), resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay %s: unexpected status %d", powerCommand(on), resp.StatusCode)
	}
	return nil
}
