// Package payment creates hosted checkout sessions on MercadoPago.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/qenty/academy/config"
)

// ErrProcessor wraps every failure to obtain a checkout URL.
var ErrProcessor = errors.New("payment processor")

const defaultTimeout = 15 * time.Second

// Item is a single line of the checkout.
type Item struct {
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	CurrencyID string `json:"currency_id"`
}

// BackURLs are the browser redirects issued by the processor.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// Preference is the checkout session request.
type Preference struct {
	Items             []Item   `json:"items"`
	BackURLs          BackURLs `json:"back_urls"`
	AutoReturn        string   `json:"auto_return"`
	ExternalReference string   `json:"external_reference"`
}

// Client creates preferences through the MercadoPago SDK.
type Client struct {
	accessToken string
	requester   *requester
}

func NewClient(cfg config.PaymentConfig) *Client {
	r := &requester{client: &http.Client{Timeout: defaultTimeout}}
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		if u, err := url.Parse(strings.TrimRight(base, "/")); err == nil && u.Host != "" {
			r.base = u
		}
	}
	return &Client{
		accessToken: strings.TrimSpace(cfg.AccessToken),
		requester:   r,
	}
}

// Configured reports whether an access token is present.
func (c *Client) Configured() bool {
	return c.accessToken != ""
}

// CreatePreference registers a checkout session and returns the URL the
// buyer must be redirected to.
func (c *Client) CreatePreference(ctx context.Context, pref Preference) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: missing access token", ErrProcessor)
	}

	cfg, err := mpconfig.New(c.accessToken, mpconfig.WithHTTPClient(c.requester))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	resource, err := preference.NewClient(cfg).Create(ctx, toRequest(pref))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	if resource == nil || strings.TrimSpace(resource.InitPoint) == "" {
		return "", fmt.Errorf("%w: response has no init_point", ErrProcessor)
	}
	return resource.InitPoint, nil
}

func toRequest(pref Preference) preference.Request {
	items := make([]preference.ItemRequest, 0, len(pref.Items))
	for _, item := range pref.Items {
		items = append(items, preference.ItemRequest{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  float64(item.UnitPrice),
			CurrencyID: item.CurrencyID,
		})
	}
	return preference.Request{
		Items: items,
		BackURLs: &preference.BackURLsRequest{
			Success: pref.BackURLs.Success,
			Failure: pref.BackURLs.Failure,
			Pending: pref.BackURLs.Pending,
		},
		AutoReturn:        pref.AutoReturn,
		ExternalReference: pref.ExternalReference,
	}
}

// requester sends SDK requests, rerouted to base when one is configured so
// that sandboxes and local fakes can stand in for api.mercadopago.com.
type requester struct {
	base   *url.URL
	client *http.Client
}

func (r *requester) Do(req *http.Request) (*http.Response, error) {
	if r.base != nil {
		req.URL.Scheme = r.base.Scheme
		req.URL.Host = r.base.Host
		req.URL.Path = r.base.Path + req.URL.Path
		req.URL.RawPath = ""
		req.Host = r.base.Host
	}
	return r.client.Do(req)
}
