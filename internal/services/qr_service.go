package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/store"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// QRCodeTTL bounds how long a payment request can be scanned.
const QRCodeTTL = 10 * time.Minute

var (
	ErrQRExpired     = fmt.Errorf("invalid or expired QR code: %w", ErrNotFound)
	ErrQRUnavailable = errors.New("QR payments are unavailable")
)

// PaymentRequest is the payload behind a payment QR code.
type PaymentRequest struct {
	AccountCode string          `json:"account_code"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	Nonce       string          `json:"nonce"`
}

// PaymentQR is a generated code: the token to scan and its PNG rendering.
type PaymentQR struct {
	Token     string    `json:"qr_code"`
	Image     string    `json:"qr_image"`
	ExpiresAt time.Time `json:"expires_at"`
}

type QRService struct {
	accounts store.AccountStore
	redis    *redis.Client
	now      func() time.Time
	nonce    func() string
}

func NewQRService(accounts store.AccountStore, redis *redis.Client) *QRService {
	return &QRService{
		accounts: accounts,
		redis:    redis,
		now:      time.Now,
		nonce:    uuid.NewString,
	}
}

func qrKey(token string) string {
	return "qr:" + token
}

// GenerateQRCode creates a one-time request to pay amount into accountCode.
func (s *QRService) GenerateQRCode(ctx context.Context, accountCode string, amount decimal.Decimal, description string) (*PaymentQR, error) {
	if s.redis == nil {
		return nil, ErrQRUnavailable
	}

	accountCode = strings.TrimSpace(accountCode)
	verr := &ValidationError{}
	checkAmount(verr, amount)
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	account, err := s.accounts.GetAccountByCode(ctx, accountCode)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountCode, err)
	}
	if !account.IsActive {
		return nil, NewValidationError("account_code", "account is inactive")
	}

	now := s.now().UTC()
	payload, err := json.Marshal(PaymentRequest{
		AccountCode: account.Code,
		Amount:      models.RoundMoney(amount),
		Description: strings.TrimSpace(description),
		CreatedAt:   now.Unix(),
		Nonce:       s.nonce(),
	})
	if err != nil {
		return nil, err
	}

	token := base64.RawURLEncoding.EncodeToString(payload)
	if err := s.redis.Set(ctx, qrKey(token), payload, QRCodeTTL).Err(); err != nil {
		return nil, fmt.Errorf("store QR payload: %w", err)
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}

	return &PaymentQR{
		Token:     token,
		Image:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		ExpiresAt: now.Add(QRCodeTTL),
	}, nil
}

// ProcessQRCode consumes a scanned token. A token can be processed once.
func (s *QRService) ProcessQRCode(ctx context.Context, token string) (*PaymentRequest, error) {
	if s.redis == nil {
		return nil, ErrQRUnavailable
	}
	key := qrKey(strings.TrimSpace(token))

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrQRExpired
	}
	if err != nil {
		return nil, err
	}

	// Whoever deletes the key owns the payment.
	removed, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, ErrQRExpired
	}

	var req PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode QR payload: %w", err)
	}
	return &req, nil
}
