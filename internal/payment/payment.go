// Package payment fetches the fee-bearing payment method catalog from the
// third-party gateway and groups it for the checkout UI. Fees depend on the
// amount tier, so responses are cached per rounded-up amount bucket.
package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/FikFikk/luminastore/internal/backend"
)

type Category string

const (
	CategoryBankTransfer Category = "bank_transfer"
	CategoryEWallet      Category = "e_wallet"
	CategoryCreditCard   Category = "credit_card"
	CategoryRetail       Category = "retail"
	CategoryOther        Category = "other"
	CategoryCOD          Category = "cod"
)

// CODCode is the manual cash-on-delivery option, always offered, fee zero,
// never sent to the gateway.
const CODCode = "COD"

type Method struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Fee      int64    `json:"fee"`
	Category Category `json:"category"`
}

// MethodClient fetches the raw method list for a payable amount.
type MethodClient interface {
	Methods(ctx context.Context, amount int64) ([]Method, error)
}

// HTTPMethodClient signs requests the way the gateway requires:
// sha256 over merchantCode + amount + timestamp + shared secret.
type HTTPMethodClient struct {
	hc           *http.Client
	baseURL      string
	merchantCode string
	apiKey       string
	now          func() time.Time
}

func NewHTTPMethodClient(baseURL, merchantCode, apiKey string, timeout time.Duration) *HTTPMethodClient {
	return &HTTPMethodClient{
		hc:           &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		merchantCode: merchantCode,
		apiKey:       apiKey,
		now:          time.Now,
	}
}

type methodRequest struct {
	MerchantCode string `json:"merchantcode"`
	Amount       int64  `json:"amount"`
	DateTime     string `json:"datetime"`
	Signature    string `json:"signature"`
}

type methodDTO struct {
	PaymentMethod string `json:"paymentMethod"`
	PaymentName   string `json:"paymentName"`
	TotalFee      int64  `json:"totalFee"`
}

func (c *HTTPMethodClient) Methods(ctx context.Context, amount int64) ([]Method, error) {
	datetime := c.now().Format("2006-01-02 15:04:05")

	body := methodRequest{
		MerchantCode: c.merchantCode,
		Amount:       amount,
		DateTime:     datetime,
		Signature:    Signature(c.merchantCode, amount, datetime, c.apiKey),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payment method request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/paymentmethod/getpaymentmethod", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build payment method request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var raw struct {
		PaymentFee []methodDTO `json:"paymentFee"`
	}
	if err := backend.Fetch(c.hc, req, &raw); err != nil {
		return nil, err
	}

	methods := make([]Method, 0, len(raw.PaymentFee))
	for _, dto := range raw.PaymentFee {
		methods = append(methods, Method{
			Code:     dto.PaymentMethod,
			Name:     dto.PaymentName,
			Fee:      dto.TotalFee,
			Category: Categorize(dto.PaymentMethod),
		})
	}
	return methods, nil
}

// Signature computes the gateway request signature:
// hex(sha256(merchantCode + amount + datetime + apiKey)).
func Signature(merchantCode string, amount int64, datetime, apiKey string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d%s%s", merchantCode, amount, datetime, apiKey)))
	return hex.EncodeToString(sum[:])
}

// Substring table mapping method codes to categories, first match wins.
// The gateway publishes no canonical mapping, so this is heuristic; codes
// it has never seen land in CategoryOther.
var categoryTable = []struct {
	substring string
	category  Category
}{
	{"VC", CategoryCreditCard},
	{"CC", CategoryCreditCard},
	{"OV", CategoryEWallet},
	{"DA", CategoryEWallet},
	{"SA", CategoryEWallet},
	{"LA", CategoryEWallet},
	{"LQ", CategoryEWallet},
	{"VA", CategoryBankTransfer},
	{"BT", CategoryBankTransfer},
	{"M2", CategoryBankTransfer},
	{"BC", CategoryBankTransfer},
	{"FT", CategoryRetail},
	{"IR", CategoryRetail},
	{"A1", CategoryRetail},
}

func Categorize(code string) Category {
	upper := strings.ToUpper(code)
	for _, entry := range categoryTable {
		if strings.Contains(upper, entry.substring) {
			return entry.category
		}
	}
	return CategoryOther
}

// CashOnDelivery is appended to every catalog, untouched by grouping.
func CashOnDelivery() Method {
	return Method{Code: CODCode, Name: "Cash on Delivery", Fee: 0, Category: CategoryCOD}
}
