package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-resty/resty/v2"
)

type Config struct {
	Endpoint string `valid:"url,required"`
	Timeout  time.Duration
	Token    string
}

// Client talks to the wallet backend REST api.
type Client struct {
	cfg Config
	r   *resty.Client
}

func New(cfg Config) *Client {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	r := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	if cfg.Token != "" {
		r.SetAuthToken(cfg.Token)
	}

	return &Client{cfg: cfg, r: r}
}

// WithToken returns a client acting as the user owning token.
func (c *Client) WithToken(token string) *Client {
	cfg := c.cfg
	cfg.Token = token
	return New(cfg)
}

func (c *Client) Token() string {
	return c.cfg.Token
}

func (c *Client) request(ctx context.Context, params map[string]string) *resty.Request {
	return c.r.R().
		SetContext(ctx).
		SetPathParams(params).
		SetError(&Error{})
}

func (c *Client) do(req *resty.Request, method, path string, result any) error {
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	if !resp.IsError() {
		return nil
	}

	e, ok := resp.Error().(*Error)
	if !ok || e == nil {
		e = &Error{}
	}

	e.Status = resp.StatusCode()
	if e.Code == 0 {
		e.Code = e.Status
	}

	if e.Msg == "" {
		e.Msg = http.StatusText(e.Status)
	}

	return e
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(c.request(ctx, nil), http.MethodGet, "/me", &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (c *Client) ReadFeeSchedule(ctx context.Context) (*FeeSchedule, error) {
	var fees FeeSchedule
	if err := c.do(c.request(ctx, nil), http.MethodGet, "/fees", &fees); err != nil {
		return nil, err
	}

	return &fees, nil
}

func (c *Client) ReadContact(ctx context.Context, contactID string) (*Contact, error) {
	var contact Contact
	req := c.request(ctx, map[string]string{"contact_id": contactID})
	if err := c.do(req, http.MethodGet, "/contacts/{contact_id}", &contact); err != nil {
		return nil, err
	}

	return &contact, nil
}

func (c *Client) ReadQRCode(ctx context.Context, token string) (*Contact, error) {
	var contact Contact
	req := c.request(ctx, map[string]string{"token": token})
	if err := c.do(req, http.MethodGet, "/recipients/qr/{token}", &contact); err != nil {
		return nil, err
	}

	return &contact, nil
}

func (c *Client) CreateTransfer(ctx context.Context, input *TransferInput) (*TransferView, error) {
	var view TransferView
	req := c.request(ctx, nil).SetBody(input)
	if err := c.do(req, http.MethodPost, "/transfers", &view); err != nil {
		return nil, err
	}

	return &view, nil
}
