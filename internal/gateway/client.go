package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
)

// Client calls a remote gateway.
type Client struct {
	http  *resty.Client
	dates *dates.Normalizer
}

// New returns a Client for baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration, norm *dates.Normalizer) *Client {
	if norm == nil {
		norm = dates.New(nil)
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: rc, dates: norm}
}

func (c *Client) request(ctx context.Context, method, path string, callback func(req *resty.Request)) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if callback != nil {
		callback(req)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if res.IsError() {
		return res, fmt.Errorf("%s %s: unexpected status %s", method, path, res.Status())
	}
	return res, nil
}

// Mutate applies one operation remotely. Transport failures, non-2xx
// answers and success=false all return an error.
func (c *Client) Mutate(ctx context.Context, op model.OpKind, typ model.EntityType, item any) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	var out MutationResponse
	_, err = c.request(ctx, http.MethodPost, PathExec, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json").
			SetBody(MutationRequest{Operation: op, Type: typ, Item: raw}).
			SetResult(&out).
			SetError(&out)
	})
	if err != nil {
		if out.Error != "" {
			return fmt.Errorf("%w: %s", err, out.Error)
		}
		return err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "no reason given"
		}
		return fmt.Errorf("%w: %s %s: %s", ErrRemote, op, typ, msg)
	}
	return nil
}

// Tasks reads the task rows. Rows with unreadable fields are kept in
// their best-effort form and logged.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	var rows []model.TaskRecord
	if _, err := c.request(ctx, http.MethodGet, PathTasks, func(req *resty.Request) {
		req.SetResult(&rows)
	}); err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.Task(c.dates)
		if err != nil {
			log.WithField("task", row.ID).Warnf("read task row: %v", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	_, err := c.request(ctx, http.MethodGet, PathUsers, func(req *resty.Request) {
		req.SetResult(&users)
	})
	return users, err
}

func (c *Client) Clients(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	_, err := c.request(ctx, http.MethodGet, PathClients, func(req *resty.Request) {
		req.SetResult(&clients)
	})
	return clients, err
}

// Health checks the root endpoint.
func (c *Client) Health(ctx context.Context) (Status, error) {
	var st Status
	_, err := c.request(ctx, http.MethodGet, "/", func(req *resty.Request) {
		req.SetResult(&st)
	})
	return st, err
}

// Mutator sends one collection's operations through a Client.
type Mutator[T any] struct {
	client *Client
	typ    model.EntityType
}

func NewMutator[T any](c *Client, typ model.EntityType) *Mutator[T] {
	return &Mutator[T]{client: c, typ: typ}
}

func (m *Mutator[T]) Apply(ctx context.Context, kind model.OpKind, item T) error {
	return m.client.Mutate(ctx, kind, m.typ, item)
}
