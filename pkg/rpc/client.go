// Package rpc is the worker side of the coordinator HTTP API.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/types"
)

const defaultRequestTimeout = 5 * time.Minute

// Client talks to one coordinator. It implements the worker queue of
// dispatch.Worker: Next long-polls until an index arrives.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *Client) URL() string { return c.baseURL }

// Health checks that the coordinator answers.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectOK("health", resp)
}

// Job fetches the batch parameters.
func (c *Client) Job(ctx context.Context) (Job, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/job", nil)
	if err != nil {
		return Job{}, err
	}
	defer resp.Body.Close()
	if err := expectOK("job", resp); err != nil {
		return Job{}, err
	}

	var jr JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return Job{}, fmt.Errorf("decode job body: %w", err)
	}
	return jr.Job, nil
}

// Register claims the next free worker slot.
func (c *Client) Register(ctx context.Context) (types.WorkerID, Job, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/workers", nil)
	if err != nil {
		return 0, Job{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return 0, Job{}, fmt.Errorf("%w: %s", clgrperrors.ErrNoWorkerSlot, c.baseURL)
	}
	if err := expectOK("register", resp); err != nil {
		return 0, Job{}, err
	}

	var rr RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return 0, Job{}, fmt.Errorf("decode register body: %w", err)
	}
	return rr.WorkerID, rr.Job, nil
}

// Next polls until the coordinator assigns an index to w.
func (c *Client) Next(ctx context.Context, w types.WorkerID) (types.ShardIndex, error) {
	path := fmt.Sprintf("/api/workers/%d/assignment", w)
	for {
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return types.NoMoreWork, err
		}
		if resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			continue
		}

		index, err := decodeAssignment(resp)
		resp.Body.Close()
		return index, err
	}
}

func decodeAssignment(resp *http.Response) (types.ShardIndex, error) {
	if err := expectOK("assignment", resp); err != nil {
		return types.NoMoreWork, err
	}
	var ar AssignmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return types.NoMoreWork, fmt.Errorf("decode assignment body: %w", err)
	}
	return ar.Index, nil
}

// Report posts a completion report.
func (c *Client) Report(ctx context.Context, r types.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/workers/%d/reports", r.Worker), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectOK("report", resp)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func expectOK(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s failed: %d: %s", op, resp.StatusCode, strings.TrimSpace(string(b)))
}
