package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"

	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/models"
)

// ListFiles returns every file the server knows about, in server order.
func (c *Client) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodGet, constants.PathListFiles, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("list files failed: status %d: %s", resp.StatusCode, ReadErrorBody(resp))
	}

	var files []models.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	if files == nil {
		files = []models.FileRecord{}
	}
	return files, nil
}

// DeleteBatch asks the server to delete every named file in one request.
//
// A returned result carries the per-name outcome. A *BatchDeleteError means
// the request failed as a whole and nothing may be assumed deleted.
// Authentication errors are returned unwrapped.
func (c *Client) DeleteBatch(ctx context.Context, names []string) (*models.BatchDeleteResult, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodPost, constants.PathDeleteBatch, models.BatchDeleteRequest{Filenames: names})
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		return nil, &BatchDeleteError{Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &BatchDeleteError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(ReadErrorBody(resp)),
		}
	}

	var result models.BatchDeleteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &BatchDeleteError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	if result.Success == nil {
		result.Success = []string{}
	}
	if result.Failed == nil {
		result.Failed = []string{}
	}
	return &result, nil
}

// DeleteFile deletes a single file.
func (c *Client) DeleteFile(ctx context.Context, uniqueName string) error {
	resp, err := c.Do(ctx, nethttp.MethodDelete, constants.PathDelete+url.PathEscape(uniqueName), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("delete %s failed: status %d: %s", uniqueName, resp.StatusCode, ReadErrorBody(resp))
	}
	return nil
}
