// Package deriv moves funds into and out of Deriv trading accounts through
// the payment-agent WebSocket API. Every Transfer opens a fresh, single-use
// connection: authorize, gate on the agent's float balance, send exactly one
// paymentagent_transfer, and close on every exit path.
package deriv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Outcome classifies a transfer attempt.
//
// Unreachable means the connection or authorization never got far enough to
// send the transfer message: no money can have moved, so the attempt is safe
// to retry. Rejected is an explicit provider refusal. Unknown means the
// transfer message was sent but no response arrived before the deadline: the
// provider may have completed it server-side, so the outcome requires manual
// reconciliation and must never be retried blindly.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRejected
	OutcomeUnreachable
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeUnknown:
		return "unknown"
	}
	return "invalid"
}

type TransferResult struct {
	Outcome Outcome
	Message string
	Raw     json.RawMessage
}

func (r TransferResult) OK() bool {
	return r.Outcome == OutcomeOK
}

const defaultTimeout = 30 * time.Second

type Client struct {
	endpoint string
	appID    string
	token    string
	timeout  time.Duration
	dialer   *websocket.Dialer
}

func NewClient(endpoint, appID, token string) *Client {
	return &Client{
		endpoint: endpoint,
		appID:    appID,
		token:    token,
		timeout:  defaultTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultTimeout,
		},
	}
}

func (c *Client) url() string {
	if strings.Contains(c.endpoint, "://") {
		return fmt.Sprintf("%s?app_id=%s", c.endpoint, c.appID)
	}
	return fmt.Sprintf("wss://%s/websockets/v3?app_id=%s", c.endpoint, c.appID)
}

// Transfer sends amount (settlement currency) to the destination account.
// The result is always normalized; no transport error escapes.
func (c *Client) Transfer(ctx context.Context, destination string, amount decimal.Decimal, description string) TransferResult {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	conn, _, err := c.dialer.DialContext(ctx, c.url(), header)
	if err != nil {
		log.Printf("deriv: connection failed: %v", err)
		return TransferResult{
			Outcome: OutcomeUnreachable,
			Message: "provider connection failed",
		}
	}
	defer conn.Close()

	// 1. Authorize with the payment-agent token.
	auth, err := c.roundTrip(conn, map[string]any{"authorize": c.token})
	if err != nil {
		log.Printf("deriv: authorize round trip failed: %v", err)
		return TransferResult{
			Outcome: OutcomeUnreachable,
			Message: "provider authorization unreachable",
		}
	}
	if auth.Error != nil {
		log.Printf("deriv: authorization rejected: %s", auth.Error.Message)
		return TransferResult{
			Outcome: OutcomeRejected,
			Message: "Authorization failed: " + auth.Error.Message,
			Raw:     auth.raw,
		}
	}

	// 2. Gate on the agent float so a doomed transfer is never attempted.
	if auth.Authorize != nil && auth.Authorize.Balance != nil {
		balance, err := decimal.NewFromString(auth.Authorize.Balance.String())
		if err == nil && balance.LessThan(amount) {
			log.Printf("deriv: insufficient agent balance %s for transfer of %s", balance, amount)
			return TransferResult{
				Outcome: OutcomeRejected,
				Message: "Insufficient payment agent balance",
				Raw:     auth.raw,
			}
		}
	}

	// 3. The transfer itself. From here on a missing response means the
	// outcome is unknown, not failed.
	transfer, err := c.roundTrip(conn, map[string]any{
		"paymentagent_transfer": 1,
		"transfer_to":           destination,
		"amount":                amount.InexactFloat64(),
		"currency":              "USD",
		"description":           description,
	})
	if err != nil {
		log.Printf("deriv: no transfer response for %s: %v", destination, err)
		return TransferResult{
			Outcome: OutcomeUnknown,
			Message: "No response to transfer - outcome unknown, manual reconciliation required",
		}
	}
	if transfer.Error != nil {
		log.Printf("deriv: transfer rejected for %s: %s", destination, transfer.Error.Message)
		return TransferResult{
			Outcome: OutcomeRejected,
			Message: transfer.Error.Message,
			Raw:     transfer.raw,
		}
	}
	if transfer.PaymentagentTransfer == 1 {
		log.Printf("deriv: transfer of %s USD to %s confirmed", amount, destination)
		return TransferResult{
			Outcome: OutcomeOK,
			Message: "Transfer successful",
			Raw:     transfer.raw,
		}
	}
	// Unknown provider states must never be treated as success.
	log.Printf("deriv: unexpected transfer response for %s: %s", destination, string(transfer.raw))
	return TransferResult{
		Outcome: OutcomeRejected,
		Message: "Unexpected response from provider",
		Raw:     transfer.raw,
	}
}

type apiResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Authorize *struct {
		Balance *json.Number `json:"balance"`
		LoginID string       `json:"loginid"`
	} `json:"authorize"`
	PaymentagentTransfer int `json:"paymentagent_transfer"`

	raw json.RawMessage
}

// roundTrip writes one message and reads exactly one correlated response.
func (c *Client) roundTrip(conn *websocket.Conn, message map[string]any) (apiResponse, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return apiResponse{}, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return apiResponse{}, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return apiResponse{}, err
	}
	var resp apiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return apiResponse{}, err
	}
	resp.raw = data
	return resp, nil
}
