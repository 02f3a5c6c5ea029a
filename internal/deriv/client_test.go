package deriv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var upgrader = websocket.Upgrader{}

// newTestClient points a client at a scripted WebSocket server. The script
// receives each decoded request and returns the raw response to send, or nil
// to stay silent.
func newTestClient(t *testing.T, script func(request map[string]any) any) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var request map[string]any
			if err := json.Unmarshal(data, &request); err != nil {
				return
			}
			response := script(request)
			if response == nil {
				continue
			}
			payload, err := json.Marshal(response)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"), "1001", "agent-token")
	client.timeout = 500 * time.Millisecond
	return client
}

func authorizeResponse(balance string) map[string]any {
	return map[string]any{
		"authorize": map[string]any{
			"balance": json.Number(balance),
			"loginid": "CR90000000",
		},
	}
}

func TestTransferSuccess(t *testing.T) {
	var transferRequest map[string]any
	client := newTestClient(t, func(request map[string]any) any {
		if _, ok := request["authorize"]; ok {
			return authorizeResponse("1000.00")
		}
		transferRequest = request
		return map[string]any{
			"paymentagent_transfer": 1,
			"transaction_id":        12345,
		}
	})

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeOK {
		t.Fatalf("expected ok, got %s: %s", result.Outcome, result.Message)
	}
	if len(result.Raw) == 0 {
		t.Fatal("expected the raw provider response to be captured")
	}
	if got := transferRequest["transfer_to"]; got != "CR12345678" {
		t.Fatalf("expected transfer_to CR12345678, got %v", got)
	}
	if got := transferRequest["amount"]; got != float64(10) {
		t.Fatalf("amount must be a JSON number, got %T %v", got, got)
	}
	if got := transferRequest["currency"]; got != "USD" {
		t.Fatalf("expected USD, got %v", got)
	}
}

func TestTransferAuthorizationRejected(t *testing.T) {
	var transferAttempted bool
	client := newTestClient(t, func(request map[string]any) any {
		if _, ok := request["authorize"]; ok {
			return map[string]any{
				"error": map[string]any{"code": "InvalidToken", "message": "Token is invalid"},
			}
		}
		transferAttempted = true
		return map[string]any{}
	})

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if !strings.HasPrefix(result.Message, "Authorization failed:") {
		t.Fatalf("unexpected message: %s", result.Message)
	}
	if transferAttempted {
		t.Fatal("no transfer may be sent after a failed authorization")
	}
}

func TestTransferInsufficientAgentBalance(t *testing.T) {
	var transferAttempted bool
	client := newTestClient(t, func(request map[string]any) any {
		if _, ok := request["authorize"]; ok {
			return authorizeResponse("5.00")
		}
		transferAttempted = true
		return map[string]any{}
	})

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if result.Message != "Insufficient payment agent balance" {
		t.Fatalf("unexpected message: %s", result.Message)
	}
	if transferAttempted {
		t.Fatal("a doomed transfer must not be attempted")
	}
}

func TestTransferProviderError(t *testing.T) {
	client := newTestClient(t, func(request map[string]any) any {
		if _, ok := request["authorize"]; ok {
			return authorizeResponse("1000.00")
		}
		return map[string]any{
			"error": map[string]any{"code": "PaymentAgentTransferError", "message": "Invalid loginid"},
		}
	})

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if result.Message != "Invalid loginid" {
		t.Fatalf("unexpected message: %s", result.Message)
	}
}

func TestTransferNoResponseIsUnknown(t *testing.T) {
	client := newTestClient(t, func(request map[string]any) any {
		if _, ok := request["authorize"]; ok {
			return authorizeResponse("1000.00")
		}
		return nil // swallow the transfer message
	})

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeUnknown {
		t.Fatalf("silence after the transfer is sent must be unknown, got %s", result.Outcome)
	}
}

func TestTransferUnexpectedResponseIsRejected(t *testing.T) {
	client := newTestClient(t, func(request map[string]any) any {
		if _, ok := request["authorize"]; ok {
			return authorizeResponse("1000.00")
		}
		return map[string]any{"paymentagent_transfer": 2}
	})

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeRejected {
		t.Fatalf("unexpected provider state must not pass as success, got %s", result.Outcome)
	}
}

func TestTransferConnectionRefused(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1", "1001", "agent-token")
	client.timeout = 500 * time.Millisecond
	client.dialer.HandshakeTimeout = 500 * time.Millisecond

	result := client.Transfer(context.Background(), "CR12345678", decimal.RequireFromString("10"), "Deposit")
	if result.Outcome != OutcomeUnreachable {
		t.Fatalf("expected unreachable, got %s", result.Outcome)
	}
}
