package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushMessage is one notification addressed to a device token.
type PushMessage struct {
	Token string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushReceipt is the per-message delivery outcome reported by the gateway.
type PushReceipt struct {
	Status string
	Detail string
}

// OK reports a successful delivery handoff.
func (r PushReceipt) OK() bool { return r.Status == "ok" }

// DeviceGone reports a permanently unregistered device token.
func (r PushReceipt) DeviceGone() bool { return r.Detail == "DeviceNotRegistered" }

// PushSender delivers notifications to devices. Receipts are returned in
// message order.
type PushSender interface {
	Send(ctx context.Context, msgs []PushMessage) ([]PushReceipt, error)
}

// expoChunkSize is the maximum batch the Expo push endpoint accepts.
const expoChunkSize = 100

// ExpoGateway sends notifications through an Expo-compatible push endpoint.
type ExpoGateway struct {
	baseURL    string
	httpClient *http.Client
}

// NewExpoGateway constructs a gateway with sane defaults.
func NewExpoGateway(baseURL string) *ExpoGateway {
	return &ExpoGateway{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send implements PushSender, chunking the batch per the endpoint limit.
func (g *ExpoGateway) Send(ctx context.Context, msgs []PushMessage) ([]PushReceipt, error) {
	receipts := make([]PushReceipt, 0, len(msgs))
	for start := 0; start < len(msgs); start += expoChunkSize {
		end := start + expoChunkSize
		if end > len(msgs) {
			end = len(msgs)
		}
		chunk, err := g.sendChunk(ctx, msgs[start:end])
		if err != nil {
			return receipts, err
		}
		receipts = append(receipts, chunk...)
	}
	return receipts, nil
}

func (g *ExpoGateway) sendChunk(ctx context.Context, msgs []PushMessage) ([]PushReceipt, error) {
	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("push gateway error: %s", data)
	}

	var payload struct {
		Data []struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Details struct {
				Error string `json:"error"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	receipts := make([]PushReceipt, 0, len(payload.Data))
	for _, ticket := range payload.Data {
		receipt := PushReceipt{Status: ticket.Status}
		if ticket.Status != "ok" {
			receipt.Detail = ticket.Details.Error
			if receipt.Detail == "" {
				receipt.Detail = ticket.Message
			}
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}
