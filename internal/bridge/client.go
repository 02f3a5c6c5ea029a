// Package bridge is a typed client for the legacy ledger system's HTTP API.
// Every capability is one endpoint behind a static X-API-KEY header; success
// is reported by a discriminator field in the JSON body. Transport faults,
// timeouts and malformed responses never escape as raw errors: they are
// normalized to ErrUnavailable so callers can classify them uniformly. The
// client performs no retries; retry policy belongs to the caller.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable wraps every transport-level failure (connect, timeout,
// non-JSON body). Callers may treat it as retryable.
var ErrUnavailable = fmt.Errorf("ledger bridge unavailable")

// RemoteError is a business rejection from the ledger system: the call went
// through but the server answered success=false.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Valid   *bool           `json:"valid,omitempty"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// postDecode sends one request and decodes the whole response body into
// target, normalizing every transport or decode fault to ErrUnavailable.
func (c *Client) postDecode(ctx context.Context, op, path string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %s: encode request", ErrUnavailable, op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("bridge: %s transport error: %v", op, err)
		return fmt.Errorf("%w: %s", ErrUnavailable, op)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		log.Printf("bridge: %s malformed response: %v", op, err)
		return fmt.Errorf("%w: %s", ErrUnavailable, op)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) (envelope, error) {
	var env envelope
	if err := c.postDecode(ctx, op, path, body, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// call posts body to path and decodes the data section into target when the
// envelope reports success. A success=false envelope becomes a RemoteError.
func (c *Client) call(ctx context.Context, op, path string, body, target any) error {
	env, err := c.post(ctx, op, path, body)
	if err != nil {
		return err
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = op + " failed"
		}
		return &RemoteError{Op: op, Message: message}
	}
	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			log.Printf("bridge: %s malformed data: %v", op, err)
			return fmt.Errorf("%w: %s", ErrUnavailable, op)
		}
	}
	return nil
}

// ValidateSession checks a session token with the legacy system and resolves
// the wallet it belongs to.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (Session, error) {
	env, err := c.post(ctx, "validate_session", "/api/validate_session", map[string]string{
		"session_id": sessionID,
	})
	if err != nil {
		return Session{}, err
	}
	if env.Valid == nil || !*env.Valid {
		message := env.Message
		if message == "" {
			message = "invalid session"
		}
		return Session{}, &RemoteError{Op: "validate_session", Message: message}
	}
	var data struct {
		WalletID string `json:"wallet_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.WalletID == "" {
		return Session{}, fmt.Errorf("%w: validate_session", ErrUnavailable)
	}
	return Session{WalletID: data.WalletID}, nil
}

type wireRate struct {
	ExchangeType string      `json:"exchange_type"`
	ServiceType  string      `json:"service_type"`
	Rate         json.Number `json:"kes"`
	BoughtAt     json.Number `json:"bought_at"`
}

func (w wireRate) snapshot() (RateSnapshot, error) {
	rate, err := decimal.NewFromString(w.Rate.String())
	if err != nil {
		return RateSnapshot{}, err
	}
	boughtAt, err := decimal.NewFromString(w.BoughtAt.String())
	if err != nil {
		return RateSnapshot{}, err
	}
	return RateSnapshot{
		ExchangeType: w.ExchangeType,
		ServiceType:  w.ServiceType,
		Rate:         rate,
		BoughtAt:     boughtAt,
	}, nil
}

// GetUserData returns the wallet's running balance and the current buy rate.
// The legacy system reports credit and debit totals as comma-grouped strings.
func (c *Client) GetUserData(ctx context.Context, walletID, sessionID string) (UserData, error) {
	var data struct {
		Summary struct {
			TotalCredit string `json:"total_credit"`
			TotalDebit  string `json:"total_debit"`
		} `json:"summary"`
		BuyRate wireRate `json:"buy_rate"`
	}
	err := c.call(ctx, "user_data", "/api/user_data", map[string]string{
		"wallet_id":  walletID,
		"session_id": sessionID,
	}, &data)
	if err != nil {
		return UserData{}, err
	}
	credit, err := parseGroupedAmount(data.Summary.TotalCredit)
	if err != nil {
		return UserData{}, fmt.Errorf("%w: user_data", ErrUnavailable)
	}
	debit, err := parseGroupedAmount(data.Summary.TotalDebit)
	if err != nil {
		return UserData{}, fmt.Errorf("%w: user_data", ErrUnavailable)
	}
	snapshot, err := data.BuyRate.snapshot()
	if err != nil {
		return UserData{}, fmt.Errorf("%w: user_data", ErrUnavailable)
	}
	return UserData{
		BalanceLocal: credit.Sub(debit),
		BuyRate:      snapshot,
	}, nil
}

func (c *Client) GetSellRate(ctx context.Context) (RateSnapshot, error) {
	var data wireRate
	if err := c.call(ctx, "sell_rate", "/api/sell_rate", map[string]string{}, &data); err != nil {
		return RateSnapshot{}, err
	}
	snapshot, err := data.snapshot()
	if err != nil {
		return RateSnapshot{}, fmt.Errorf("%w: sell_rate", ErrUnavailable)
	}
	return snapshot, nil
}

// CheckDuplicateTransaction reports whether a non-failed request already
// exists for the transaction id. The legacy API answers with a top-level
// is_duplicate flag rather than the usual envelope.
func (c *Client) CheckDuplicateTransaction(ctx context.Context, transactionID string) (bool, error) {
	var data struct {
		IsDuplicate *bool  `json:"is_duplicate"`
		Message     string `json:"message"`
	}
	err := c.postDecode(ctx, "check_transaction", "/api/check_transaction", map[string]string{
		"transaction_id": transactionID,
	}, &data)
	if err != nil {
		return false, err
	}
	if data.IsDuplicate == nil {
		return false, fmt.Errorf("%w: check_transaction", ErrUnavailable)
	}
	return *data.IsDuplicate, nil
}

// CheckPendingWithdrawals returns the number of pending withdrawal requests
// for the wallet.
func (c *Client) CheckPendingWithdrawals(ctx context.Context, walletID string) (int, error) {
	var data struct {
		PendingWithdrawals []json.RawMessage `json:"pending_withdrawals"`
	}
	err := c.call(ctx, "pending_withdrawals", "/api/pending_withdrawals", map[string]string{
		"wallet_id": walletID,
	}, &data)
	if err != nil {
		return 0, err
	}
	return len(data.PendingWithdrawals), nil
}

func (c *Client) CreateDepositRequest(ctx context.Context, input DepositRequestInput) (string, error) {
	var data struct {
		RequestID string `json:"request_id"`
	}
	err := c.call(ctx, "create_deposit_request", "/api/create_deposit_request", map[string]any{
		"transaction_id":     input.TransactionID,
		"transaction_number": input.TransactionNumber,
		"wallet_id":          input.WalletID,
		"cr_number":          input.CRNumber,
		"amount":             input.Amount,
		"rate":               input.Rate,
		"bought_at":          input.BoughtAt,
		"status":             input.Status,
		"request_date":       input.RequestedAt.UTC().Format(time.DateTime),
	}, &data)
	if err != nil {
		return "", err
	}
	return data.RequestID, nil
}

func (c *Client) UpdateDepositRequest(ctx context.Context, requestID string, update DepositUpdate) error {
	fields := map[string]any{"status": update.Status}
	if update.Deposited != nil {
		fields["deposited"] = *update.Deposited
	}
	if update.ErrorMessage != "" {
		fields["error_message"] = update.ErrorMessage
	}
	if update.ProcessedAt != nil {
		fields["processed_at"] = update.ProcessedAt.UTC().Format(time.DateTime)
	}
	if len(update.ProviderResponse) > 0 {
		fields["provider_response"] = update.ProviderResponse
	}
	return c.call(ctx, "update_deposit_request", "/api/update_deposit_request", map[string]any{
		"request_id": requestID,
		"data":       fields,
	}, nil)
}

func (c *Client) GetDepositRequest(ctx context.Context, requestID string) (DepositRequest, error) {
	var data wireDepositRequest
	err := c.call(ctx, "get_deposit_request", "/api/get_deposit_request", map[string]string{
		"request_id": requestID,
	}, &data)
	if err != nil {
		return DepositRequest{}, err
	}
	return data.request()
}

func (c *Client) CreateWithdrawalRequest(ctx context.Context, input WithdrawalRequestInput) (string, error) {
	var data struct {
		RequestID string `json:"request_id"`
	}
	err := c.call(ctx, "create_withdrawal_request", "/api/create_withdrawal_request", map[string]any{
		"transaction_id":     input.TransactionID,
		"transaction_number": input.TransactionNumber,
		"wallet_id":          input.WalletID,
		"cr_number":          input.CRNumber,
		"amount":             input.Amount,
		"rate":               input.Rate,
		"bought_at":          input.BoughtAt,
		"status":             input.Status,
		"request_date":       input.RequestedAt.UTC().Format(time.DateTime),
	}, &data)
	if err != nil {
		return "", err
	}
	return data.RequestID, nil
}

func (c *Client) UpdateWithdrawalRequest(ctx context.Context, requestID string, update WithdrawalUpdate) error {
	fields := map[string]any{"status": update.Status}
	if update.Withdrawn != nil {
		fields["withdraw"] = *update.Withdrawn
	}
	if update.ErrorMessage != "" {
		fields["error_message"] = update.ErrorMessage
	}
	if update.ProcessedAt != nil {
		fields["processed_at"] = update.ProcessedAt.UTC().Format(time.DateTime)
	}
	return c.call(ctx, "update_withdrawal_request", "/api/update_withdrawal_request", map[string]any{
		"request_id": requestID,
		"data":       fields,
	}, nil)
}

func (c *Client) GetWithdrawalRequest(ctx context.Context, requestID string) (WithdrawalRequest, error) {
	var data wireWithdrawalRequest
	err := c.call(ctx, "get_withdrawal_request", "/api/get_withdrawal_request", map[string]string{
		"request_id": requestID,
	}, &data)
	if err != nil {
		return WithdrawalRequest{}, err
	}
	return data.request()
}

func (c *Client) CreateLedgerEntries(ctx context.Context, entry LedgerEntry) error {
	return c.call(ctx, "create_ledger_entries", "/api/create_ledger_entries", map[string]any{
		"transaction_id":     entry.TransactionID,
		"transaction_number": entry.TransactionNumber,
		"wallet_id":          entry.WalletID,
		"amount":             entry.Amount,
		"amount_usd":         entry.AmountSettlement,
		"rate":               entry.Rate,
		"charge":             entry.Charge,
		"description":        entry.Description,
		"cr_dr":              entry.Direction,
	}, nil)
}

func (c *Client) GetUserInfo(ctx context.Context, walletID string) (UserInfo, error) {
	var data struct {
		Phone string `json:"phone"`
		Name  string `json:"name"`
	}
	err := c.call(ctx, "get_user_info", "/api/get_user_info", map[string]string{
		"wallet_id": walletID,
	}, &data)
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{Phone: data.Phone, Name: data.Name}, nil
}

// SendSMS dispatches a notification through the legacy system's SMS gateway.
func (c *Client) SendSMS(ctx context.Context, phone, message string) error {
	return c.call(ctx, "send_sms", "/api/send_sms", map[string]string{
		"phone":   phone,
		"message": message,
	}, nil)
}

// GetTransactions lists ledger transactions for a wallet.
func (c *Client) GetTransactions(ctx context.Context, walletID string) ([]map[string]any, error) {
	var data []map[string]any
	err := c.call(ctx, "get_transactions", "/api/get_transactions", map[string]string{
		"wallet_id": walletID,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func parseGroupedAmount(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}

type wireDepositRequest struct {
	RequestID         string      `json:"request_id"`
	TransactionID     string      `json:"transaction_id"`
	TransactionNumber string      `json:"transaction_number"`
	WalletID          string      `json:"wallet_id"`
	CRNumber          string      `json:"cr_number"`
	Amount            json.Number `json:"amount"`
	Rate              json.Number `json:"rate"`
	BoughtAt          json.Number `json:"bought_at"`
	Status            string      `json:"status"`
	ErrorMessage      string      `json:"error_message"`
	RequestDate       string      `json:"request_date"`
	ProcessedAt       string      `json:"processed_at"`
}

func (w wireDepositRequest) request() (DepositRequest, error) {
	amount, rate, boughtAt, err := parseAmounts(w.Amount, w.Rate, w.BoughtAt)
	if err != nil {
		return DepositRequest{}, fmt.Errorf("%w: get_deposit_request", ErrUnavailable)
	}
	return DepositRequest{
		RequestID:         w.RequestID,
		TransactionID:     w.TransactionID,
		TransactionNumber: w.TransactionNumber,
		WalletID:          w.WalletID,
		CRNumber:          w.CRNumber,
		Amount:            amount,
		Rate:              rate,
		BoughtAt:          boughtAt,
		Status:            Status(w.Status),
		ErrorMessage:      w.ErrorMessage,
		RequestedAt:       parseWireTime(w.RequestDate),
		ProcessedAt:       parseWireTimePtr(w.ProcessedAt),
	}, nil
}

type wireWithdrawalRequest wireDepositRequest

func (w wireWithdrawalRequest) request() (WithdrawalRequest, error) {
	amount, rate, boughtAt, err := parseAmounts(w.Amount, w.Rate, w.BoughtAt)
	if err != nil {
		return WithdrawalRequest{}, fmt.Errorf("%w: get_withdrawal_request", ErrUnavailable)
	}
	return WithdrawalRequest{
		RequestID:         w.RequestID,
		TransactionID:     w.TransactionID,
		TransactionNumber: w.TransactionNumber,
		WalletID:          w.WalletID,
		CRNumber:          w.CRNumber,
		Amount:            amount,
		Rate:              rate,
		BoughtAt:          boughtAt,
		Status:            Status(w.Status),
		ErrorMessage:      w.ErrorMessage,
		RequestedAt:       parseWireTime(w.RequestDate),
		ProcessedAt:       parseWireTimePtr(w.ProcessedAt),
	}, nil
}

func parseAmounts(amount, rate, boughtAt json.Number) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	parsedAmount, err := decimal.NewFromString(numberOrZero(amount))
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	parsedRate, err := decimal.NewFromString(numberOrZero(rate))
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	parsedBoughtAt, err := decimal.NewFromString(numberOrZero(boughtAt))
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	return parsedAmount, parsedRate, parsedBoughtAt, nil
}

func numberOrZero(value json.Number) string {
	if value.String() == "" {
		return "0"
	}
	return value.String()
}

func parseWireTime(value string) time.Time {
	parsed, err := time.Parse(time.DateTime, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseWireTimePtr(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed := parseWireTime(value)
	if parsed.IsZero() {
		return nil
	}
	return &parsed
}
