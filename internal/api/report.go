package api

import (
	"context"
	"encoding/json"
	"fmt"
	"shooter-sync/internal/config"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// ReportClient posts finished match results to the lobby webhook.
type ReportClient struct {
	url    string
	client *fasthttp.Client
	logger zerolog.Logger
}

type ReportAck struct {
	Status  string `json:"status"`
	MatchID string `json:"match_id,omitempty"`
}

func NewReportClient(cfg *config.Config, logger zerolog.Logger) *ReportClient {
	return newReportClient(cfg.ReportURL, logger)
}

func newReportClient(url string, logger zerolog.Logger) *ReportClient {
	return &ReportClient{
		url: url,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.ReportTimeout,
			WriteTimeout:        constants.ReportTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "report_client").Logger(),
	}
}

// Enabled reports whether a webhook is configured.
func (c *ReportClient) Enabled() bool {
	return c.url != ""
}

func (c *ReportClient) Report(ctx context.Context, res domain.MatchResult) (*ReportAck, error) {
	if !c.Enabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, constants.ReportTimeout)
	defer cancel()

	ack, err := doRequest[ReportAck](ctx, c, fasthttp.MethodPost, c.url, res)
	if err != nil {
		c.logger.Error().Err(err).Int("winning_team", int(res.WinningTeam)).Msg("failed to report match result")
		return nil, err
	}
	c.logger.Info().Int("winning_team", int(res.WinningTeam)).Str("status", ack.Status).Msg("match result reported")
	return ack, nil
}

func doRequest[T any](ctx context.Context, client *ReportClient, method, url string, body any) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return nil, fmt.Errorf("webhook error: %d", status)
	}

	var result T
	if len(resp.Body()) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
