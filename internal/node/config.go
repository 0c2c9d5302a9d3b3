package node

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// GetConfigZip downloads the node's full configuration as a zip
// archive.
func (c *Client) GetConfigZip(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/config", nil, nil, "", "application/zip")
}

// PutConfigZip replaces the node's configuration with the given zip
// archive.
func (c *Client) PutConfigZip(ctx context.Context, zipData []byte, force bool) error {
	params := map[string]string{}
	if force {
		params["force"] = "true"
	}
	_, err := c.do(ctx, http.MethodPut, "/config", params, zipData, "application/zip", "")
	return err
}

// PutConfigJSON replaces the node's configuration with a JSON config
// document. Used with an empty list to wipe the node.
func (c *Client) PutConfigJSON(ctx context.Context, config any, force bool) error {
	body, err := json.Marshal(config)
	if err != nil {
		return err
	}
	params := map[string]string{}
	if force {
		params["force"] = "true"
	}
	_, err = c.do(ctx, http.MethodPut, "/config", params, body, "application/json", "")
	return err
}

// PutEnv replaces the node's environment variables.
func (c *Client) PutEnv(ctx context.Context, vars map[string]any) error {
	body, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/env", nil, body, "application/json", "")
	return err
}

// Dataset is a stored dataset on the node.
type Dataset struct {
	ID string `json:"_id"`
}

// Datasets enumerates the node's datasets.
func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	if err := c.getJSON(ctx, "/datasets", nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// DeleteDataset removes a single dataset.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/datasets/"+datasetID, nil, nil, "", "")
	return err
}

// RemoveUserDatasets deletes every dataset except the platform's own
// system: datasets.
func (c *Client) RemoveUserDatasets(ctx context.Context) error {
	datasets, err := c.Datasets(ctx)
	if err != nil {
		return err
	}
	for _, ds := range datasets {
		if strings.HasPrefix(ds.ID, "system:") {
			continue
		}
		if err := c.DeleteDataset(ctx, ds.ID); err != nil {
			c.log.Error("failed to delete dataset", "dataset", ds.ID)
			return err
		}
		c.log.Debug("dataset deleted", "dataset", ds.ID)
	}
	return nil
}
