package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/reservesurf/booking-funnel/internal/domain"
)

// HTTPGateway talks to the external payment provider over its REST charge
// endpoint.
type HTTPGateway struct {
	url    string
	client *http.Client
}

func NewHTTPGateway(url string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{url: url, client: client}
}

func (g *HTTPGateway) Charge(ctx context.Context, amountCents int64, currency string, inst Instrument) (Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount_cents": amountCents,
		"currency":     currency,
		"instrument":   inst,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, domain.ErrPaymentTimeout
		}
		return Result{}, errors.Wrap(err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	var out struct {
		Success   bool   `json:"success"`
		Reference string `json:"reference"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, errors.Wrap(err, "payment gateway response")
	}
	if !out.Success {
		return Result{}, errors.WithDetail(domain.ErrPaymentDeclined, out.Reason)
	}
	return Result{Reference: out.Reference}, nil
}

// Simulator is a stand-in gateway for local runs and tests. Card numbers
// ending in 0002 decline, everything else succeeds.
type Simulator struct{}

func (Simulator) Charge(ctx context.Context, amountCents int64, currency string, inst Instrument) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, domain.ErrPaymentTimeout
	default:
	}
	if strings.HasSuffix(inst.CardNumber, "0002") {
		return Result{}, domain.ErrPaymentDeclined
	}
	return Result{Reference: "sim_" + currency + "_ok"}, nil
}
