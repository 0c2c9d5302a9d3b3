package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// System is a configured system (for example the transient scheduling
// agent) on the platform node.
type System struct {
	ID     string       `json:"_id"`
	Config SystemConfig `json:"config"`
}

// SystemConfig holds a system's stored and effective configuration.
type SystemConfig struct {
	Effective map[string]any `json:"effective"`
	Original  map[string]any `json:"original"`
}

// GetSystem returns the system with the given id, or nil if it does
// not exist.
func (c *Client) GetSystem(ctx context.Context, systemID string) (*System, error) {
	var sys System
	if err := c.getJSON(ctx, "/systems/"+systemID, nil, &sys); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &sys, nil
}

// AddSystem registers a new system. When verify is true it polls until
// the platform's stored configuration matches what was submitted,
// bounded by timeout; failing to verify in time is an error.
func (c *Client) AddSystem(ctx context.Context, config map[string]any, verify bool, timeout time.Duration) error {
	body, err := json.Marshal([]map[string]any{config})
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, http.MethodPost, "/systems", nil, body, "application/json", ""); err != nil {
		return err
	}
	if !verify {
		return nil
	}

	systemID, _ := config["_id"].(string)
	c.log.Debug("verifying posted system", "system", systemID)

	for remaining := timeout; remaining > 0; remaining -= c.VerifyPollInterval {
		sys, err := c.GetSystem(ctx, systemID)
		if err == nil && sys != nil && jsonEqual(sys.Config.Original, config) {
			c.log.Debug("posted system verified", "system", systemID)
			return nil
		}
		if err := sleep(ctx, c.VerifyPollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("posted system %q did not verify within %s", systemID, timeout)
}

// RemoveSystem deletes a system. Removing a system that does not exist
// is logged, not an error.
func (c *Client) RemoveSystem(ctx context.Context, systemID string) error {
	sys, err := c.GetSystem(ctx, systemID)
	if err != nil {
		return err
	}
	if sys == nil {
		c.log.Warn("could not remove system as it doesn't exist", "system", systemID)
		return nil
	}
	_, err = c.do(ctx, http.MethodDelete, "/systems/"+systemID, nil, nil, "", "")
	return err
}

// SystemStatus returns the status object of a system, or nil when the
// endpoint returns a non-object reply.
func (c *Client) SystemStatus(ctx context.Context, systemID string) (map[string]any, error) {
	var status any
	if err := c.getJSON(ctx, "/systems/"+systemID+"/status", nil, &status); err != nil {
		return nil, err
	}
	if m, ok := status.(map[string]any); ok {
		return m, nil
	}
	return nil, nil
}

// SystemLog returns a system's log text. A non-empty since cursor
// limits output to lines after that token.
func (c *Client) SystemLog(ctx context.Context, systemID, since string) (string, error) {
	var params map[string]string
	if since != "" {
		params = map[string]string{"since": since}
	}
	data, err := c.do(ctx, http.MethodGet, "/systems/"+systemID+"/logs", params, nil, "", "")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WaitForMicroservice polls a microservice system's status until it
// reports running, bounded by timeout. Returns false on exhaustion.
func (c *Client) WaitForMicroservice(ctx context.Context, systemID string, timeout time.Duration) (bool, error) {
	sys, err := c.GetSystem(ctx, systemID)
	if err != nil {
		return false, err
	}
	if sys == nil {
		return false, fmt.Errorf("microservice system %q doesn't exist", systemID)
	}

	for remaining := timeout; remaining > 0; remaining -= c.VerifyPollInterval {
		status, err := c.SystemStatus(ctx, systemID)
		if err != nil {
			c.log.Debug("failed to get system status", "system", systemID, "error", err)
		} else if running, _ := status["running"].(bool); running {
			return true, nil
		}
		if err := sleep(ctx, c.VerifyPollInterval); err != nil {
			return false, err
		}
	}
	return false, nil
}

// ProxyGetJSON issues a GET through a microservice's proxy endpoint
// and decodes the JSON reply.
func (c *Client) ProxyGetJSON(ctx context.Context, systemID, path string, params map[string]string) (any, error) {
	data, err := c.do(ctx, http.MethodGet, "/systems/"+systemID+"/proxy/"+path, params, nil, "", "application/json")
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProxyPost issues a POST through a microservice's proxy endpoint and
// returns the raw reply.
func (c *Client) ProxyPost(ctx context.Context, systemID, path string, params map[string]string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/systems/"+systemID+"/proxy/"+path, params, nil, "", "")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonEqual compares two values by their normalized JSON form, which
// absorbs numeric type differences between submitted and re-decoded
// configuration.
func jsonEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(aj, bj)
}
