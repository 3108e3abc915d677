package apiclient

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

const requestsPath = "/api/vendor-requests"

// ListOptions narrows a request listing.
type ListOptions struct {
	Statuses []workflow.Status
	Search   string
	Mine     bool
	Limit    int
	Offset   int
}

func requestPath(id int64, suffix ...string) string {
	parts := append([]string{requestsPath, strconv.FormatInt(id, 10)}, suffix...)
	return strings.Join(parts, "/")
}

// GetRequest fetches one vendor request.
func (c *Client) GetRequest(ctx context.Context, id int64) (vendorrequests.VendorRequest, error) {
	var out vendorrequests.VendorRequest
	err := c.do(ctx, http.MethodGet, requestPath(id), true, nil, &out)
	return out, err
}

// Pending lists requests awaiting any review stage.
func (c *Client) Pending(ctx context.Context) ([]vendorrequests.VendorRequest, error) {
	var out []vendorrequests.VendorRequest
	err := c.do(ctx, http.MethodGet, requestsPath+"/pending", true, nil, &out)
	return out, err
}

// ListRequests returns a page of requests.
func (c *Client) ListRequests(ctx context.Context, opts ListOptions) (shared.Page[vendorrequests.VendorRequest], error) {
	var out shared.Page[vendorrequests.VendorRequest]
	err := c.do(ctx, http.MethodGet, requestsPath+"/", true, func(r *resty.Request) {
		if len(opts.Statuses) > 0 {
			names := make([]string, len(opts.Statuses))
			for i, s := range opts.Statuses {
				names[i] = string(s)
			}
			r.SetQueryParam("status", strings.Join(names, ","))
		}
		if opts.Search != "" {
			r.SetQueryParam("q", opts.Search)
		}
		if opts.Mine {
			r.SetQueryParam("mine", "true")
		}
		if opts.Limit > 0 {
			r.SetQueryParam("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			r.SetQueryParam("offset", strconv.Itoa(opts.Offset))
		}
	}, &out)
	return out, err
}

// Approvals returns the request's approval history.
func (c *Client) Approvals(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	err := c.do(ctx, http.MethodGet, requestPath(id, "approvals"), true, nil, &out)
	return out, err
}

// CreateRequest files a new draft.
func (c *Client) CreateRequest(ctx context.Context, in vendorrequests.DraftInput) (vendorrequests.VendorRequest, error) {
	var out vendorrequests.VendorRequest
	err := c.do(ctx, http.MethodPost, requestsPath+"/", true, func(r *resty.Request) {
		idempotent(r)
		r.SetBody(in)
	}, &out)
	return out, err
}

// UpdateDraft replaces the editable fields of a draft.
func (c *Client) UpdateDraft(ctx context.Context, id int64, in vendorrequests.DraftInput) (vendorrequests.VendorRequest, error) {
	var out vendorrequests.VendorRequest
	err := c.do(ctx, http.MethodPut, requestPath(id), true, func(r *resty.Request) {
		r.SetBody(in)
	}, &out)
	return out, err
}

// Submit sends a draft to compliance review.
func (c *Client) Submit(ctx context.Context, id int64) (vendorrequests.VendorRequest, error) {
	return c.transition(ctx, requestPath(id, "submit"), nil)
}

// Cancel withdraws a draft.
func (c *Client) Cancel(ctx context.Context, id int64) (vendorrequests.VendorRequest, error) {
	return c.transition(ctx, requestPath(id, "cancel"), nil)
}

// AddBanking stores the finance stage's banking details.
func (c *Client) AddBanking(ctx context.Context, id int64, in vendorrequests.BankingInput) (vendorrequests.VendorRequest, error) {
	return c.transition(ctx, requestPath(id, "banking-details"), in)
}

// Review approves or rejects the request at stage.
func (c *Client) Review(ctx context.Context, id int64, stage workflow.Stage, approve bool, in vendorrequests.ActionInput) (vendorrequests.VendorRequest, error) {
	decision := "reject"
	if approve {
		decision = "approve"
	}
	return c.transition(ctx, requestPath(id, string(stage), decision), in)
}

// RequestInfo asks the requester for more information.
func (c *Client) RequestInfo(ctx context.Context, id int64, in vendorrequests.ActionInput) (vendorrequests.VendorRequest, error) {
	return c.transition(ctx, requestPath(id, "request-info"), in)
}

func (c *Client) transition(ctx context.Context, path string, body any) (vendorrequests.VendorRequest, error) {
	var out vendorrequests.VendorRequest
	err := c.do(ctx, http.MethodPost, path, true, func(r *resty.Request) {
		idempotent(r)
		if body != nil {
			r.SetBody(body)
		}
	}, &out)
	return out, err
}
