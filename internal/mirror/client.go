// Package mirror reads topic contents from a Hedera mirror node REST API.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/util"

	"go.uber.org/zap"
)

// Message is one entry of a topic as served by the mirror node.
type Message struct {
	SequenceNumber     int64  `json:"sequence_number"`
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Message            string `json:"message"`
	TopicID            string `json:"topic_id,omitempty"`
	RunningHash        string `json:"running_hash,omitempty"`
	PayerAccountID     string `json:"payer_account_id,omitempty"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

// Client lists topic messages over HTTP. It performs a single request per
// listing and does not follow pagination links.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a mirror client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// ListMessages fetches the messages of topicID in the order the mirror
// node returns them.
func (c *Client) ListMessages(ctx context.Context, topicID string) ([]Message, error) {
	ctx, span := util.StartSpan(ctx, "Mirror.ListMessages", util.TopicAttr(topicID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.MirrorLatency.Observe(time.Since(start).Seconds())
	}()

	endpoint := fmt.Sprintf("%s/api/v1/topics/%s/messages", c.baseURL, url.PathEscape(topicID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, err, "Invalid topic id")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperr.Wrap(apperr.KindMirrorUnavailable, err, "Mirror node unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Mirror node returned error",
			zap.String("topic_id", topicID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, apperr.Newf(apperr.KindMirrorUnavailable, "Mirror node error: %s", http.StatusText(resp.StatusCode))
	}

	var data messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		util.RecordError(span, err)
		return nil, apperr.Wrap(apperr.KindMirrorUnavailable, err, "Mirror node returned an unreadable body")
	}

	c.logger.Debug("Found messages",
		zap.String("topic_id", topicID),
		zap.Int("count", len(data.Messages)))

	if data.Messages == nil {
		return []Message{}, nil
	}
	return data.Messages, nil
}

// ParseConsensusTimestamp converts the mirror node's "seconds.nanoseconds"
// fixed-point form into a UTC time without going through float64.
func ParseConsensusTimestamp(s string) (time.Time, error) {
	secPart, nanoPart, hasFraction := strings.Cut(strings.TrimSpace(s), ".")
	if secPart == "" {
		return time.Time{}, fmt.Errorf("empty consensus timestamp")
	}

	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", s, err)
	}

	var nanos int64
	if hasFraction {
		if nanoPart == "" || len(nanoPart) > 9 {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp fraction %q", s)
		}
		padded := nanoPart + strings.Repeat("0", 9-len(nanoPart))
		nanos, err = strconv.ParseInt(padded, 10, 64)
		if err != nil || nanos < 0 {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp fraction %q", s)
		}
	}

	return time.Unix(sec, nanos).UTC(), nil
}
