package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the node.
type APIError struct {
	Status  int    `json:"status"`
	Reason  string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("lavalink %d %s: %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("lavalink %d %s", e.Status, e.Reason)
}

type restClient struct {
	http *resty.Client
}

func newRESTClient(baseURL, password string) *restClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", password).
		SetHeader("Accept", "application/json")
	return &restClient{http: c}
}

func apiError(resp *resty.Response) error {
	apiErr := &APIError{}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode()
		if apiErr.Reason == "" {
			apiErr.Reason = http.StatusText(resp.StatusCode())
		}
	}
	return apiErr
}

func (c *restClient) loadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("identifier", identifier).
		Get("/v4/loadtracks")
	if err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	var result LoadResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode load result: %w", err)
	}
	return &result, nil
}

func playerPath(sessionID, guildID string) string {
	return "/v4/sessions/" + url.PathEscape(sessionID) + "/players/" + url.PathEscape(guildID)
}

func (c *restClient) updatePlayer(ctx context.Context, sessionID, guildID string, update PlayerUpdate) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("noReplace", "false").
		SetBody(update).
		Patch(playerPath(sessionID, guildID))
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

func (c *restClient) destroyPlayer(ctx context.Context, sessionID, guildID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(playerPath(sessionID, guildID))
	if err != nil {
		return fmt.Errorf("destroy player: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return apiError(resp)
	}
	return nil
}
