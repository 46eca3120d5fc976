package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/util"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"go.uber.org/zap"
)

// MaxMemoBytes is the consensus service limit on topic memos.
const MaxMemoBytes = 100

// Client talks to the Hedera consensus service on behalf of one operator
// account. Every call waits for the transaction receipt before returning.
type Client struct {
	client *hedera.Client
	logger *zap.Logger
}

// NewClient creates a Hedera client for the named network ("testnet",
// "mainnet", "previewnet").
func NewClient(network, operatorID, operatorKey string) (*Client, error) {
	if operatorID == "" || operatorKey == "" {
		return nil, errors.New("ledger credentials not configured")
	}

	client, err := hedera.ClientForName(network)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client for %s: %w", network, err)
	}

	accountID, err := hedera.AccountIDFromString(operatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator account id: %w", err)
	}

	key, err := parsePrivateKey(operatorKey)
	if err != nil {
		return nil, err
	}

	client.SetOperator(accountID, key)

	return &Client{
		client: client,
		logger: util.GetLogger(),
	}, nil
}

// parsePrivateKey accepts raw ED25519, DER-encoded or raw ECDSA keys, in that order.
func parsePrivateKey(s string) (hedera.PrivateKey, error) {
	if key, err := hedera.PrivateKeyFromStringEd25519(s); err == nil {
		return key, nil
	}
	if key, err := hedera.PrivateKeyFromStringDer(s); err == nil {
		return key, nil
	}
	key, err := hedera.PrivateKeyFromStringECDSA(s)
	if err != nil {
		return hedera.PrivateKey{}, fmt.Errorf("unrecognised operator private key format: %w", err)
	}
	return key, nil
}

// CreateTopic allocates a new topic tagged with memo and returns its id.
func (c *Client) CreateTopic(ctx context.Context, memo string) (string, error) {
	_, span := util.StartSpan(ctx, "Ledger.CreateTopic")
	defer span.End()

	start := time.Now()
	defer func() {
		util.LedgerLatency.WithLabelValues("create_topic").Observe(time.Since(start).Seconds())
	}()

	resp, err := hedera.NewTopicCreateTransaction().
		SetTopicMemo(TruncateMemo(memo)).
		Execute(c.client)
	if err != nil {
		util.RecordError(span, err)
		return "", classify(err, "failed to create topic")
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		util.RecordError(span, err)
		return "", classify(err, "failed to create topic")
	}

	if receipt.TopicID == nil {
		return "", apperr.New(apperr.KindLedgerRejected, "Failed to create topic")
	}

	topicID := receipt.TopicID.String()
	c.logger.Info("Topic created", zap.String("topic_id", topicID))
	return topicID, nil
}

// SubmitMessage appends message to topicID and returns the receipt status.
func (c *Client) SubmitMessage(ctx context.Context, topicID string, message []byte) (string, error) {
	_, span := util.StartSpan(ctx, "Ledger.SubmitMessage", util.TopicAttr(topicID))
	defer span.End()

	id, err := hedera.TopicIDFromString(topicID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindLedgerRejected, err, "Invalid topic id")
	}

	start := time.Now()
	defer func() {
		util.LedgerLatency.WithLabelValues("submit_message").Observe(time.Since(start).Seconds())
	}()

	resp, err := hedera.NewTopicMessageSubmitTransaction().
		SetTopicID(id).
		SetMessage(message).
		Execute(c.client)
	if err != nil {
		util.RecordError(span, err)
		return "", classify(err, "failed to submit message")
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		util.RecordError(span, err)
		return "", classify(err, "failed to submit message")
	}

	status := receipt.Status.String()
	c.logger.Info("Message submitted",
		zap.String("topic_id", topicID),
		zap.String("status", status))
	return status, nil
}

// Close releases the client's network channels
func (c *Client) Close() error {
	return c.client.Close()
}

// classify separates statuses the network returned (rejections) from
// failures to reach it.
func classify(err error, message string) error {
	var precheck hedera.ErrHederaPreCheckStatus
	if errors.As(err, &precheck) {
		return apperr.Wrap(apperr.KindLedgerRejected, err, message)
	}
	var receipt hedera.ErrHederaReceiptStatus
	if errors.As(err, &receipt) {
		return apperr.Wrap(apperr.KindLedgerRejected, err, message)
	}
	return apperr.Wrap(apperr.KindLedgerUnavailable, err, message)
}

// TruncateMemo cuts memo to MaxMemoBytes without splitting a rune.
func TruncateMemo(memo string) string {
	if len(memo) <= MaxMemoBytes {
		return memo
	}
	cut := MaxMemoBytes
	for cut > 0 && !utf8.RuneStart(memo[cut]) {
		cut--
	}
	return memo[:cut]
}
