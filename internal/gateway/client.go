package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/installmarket/installmarket-backend/internal/config"
)

// Client описывает операции платёжного шлюза, которые нужны эскроу.
// Реализация подменяется моком в тестах.
type Client interface {
	// CreateOrder создаёт платёжную сессию, возвращает её идентификатор.
	CreateOrder(ctx context.Context, orderID string, amount float64) (string, error)
	// VerifyPayment проверяет у шлюза, что заказ оплачен.
	VerifyPayment(ctx context.Context, orderID string) (bool, error)
	// CreatePayout переводит средства монтажнику.
	CreatePayout(ctx context.Context, transferID string, payeeID string, amount float64) error
	// ProcessRefund возвращает средства заказчику.
	ProcessRefund(ctx context.Context, transferID string, orderID string, amount float64) error
}

// HTTPClient — клиент платёжного шлюза поверх его HTTP API.
type HTTPClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewHTTPClient создаёт экземпляр клиента.
func NewHTTPClient(cfg config.GatewayConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateOrder создаёт платёжную сессию шлюза под наш идентификатор заказа.
func (c *HTTPClient) CreateOrder(ctx context.Context, orderID string, amount float64) (string, error) {
	result, err := c.post(ctx, "/v1/orders", map[string]any{
		"order_id": orderID,
		"amount":   amount,
		"currency": "AUD",
	})
	if err != nil {
		return "", err
	}
	sessionID, _ := result["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("gateway: в ответе нет session_id")
	}
	return sessionID, nil
}

// VerifyPayment запрашивает у шлюза статус оплаты заказа.
func (c *HTTPClient) VerifyPayment(ctx context.Context, orderID string) (bool, error) {
	result, err := c.post(ctx, "/v1/orders/verify", map[string]any{
		"order_id": orderID,
	})
	if err != nil {
		return false, err
	}
	status, _ := result["status"].(string)
	return status == "paid", nil
}

// CreatePayout переводит средства из эскроу монтажнику.
func (c *HTTPClient) CreatePayout(ctx context.Context, transferID string, payeeID string, amount float64) error {
	_, err := c.post(ctx, "/v1/payouts", map[string]any{
		"transfer_id": transferID,
		"payee_id":    payeeID,
		"amount":      amount,
	})
	return err
}

// ProcessRefund возвращает средства из эскроу заказчику.
func (c *HTTPClient) ProcessRefund(ctx context.Context, transferID string, orderID string, amount float64) error {
	_, err := c.post(ctx, "/v1/refunds", map[string]any{
		"transfer_id": transferID,
		"order_id":    orderID,
		"amount":      amount,
	})
	return err
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) (map[string]any, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("gateway: baseURL не задан")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientID != "" {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: запрос не выполнен %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway: код ответа %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gateway: некорректный ответ %w", err)
	}

	return result, nil
}
