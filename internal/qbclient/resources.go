package qbclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Entity is a loosely-typed API object. The provider's schemas are wide and
// version-dependent, so payloads stay maps and callers pick the fields they
// need.
type Entity map[string]interface{}

// ID returns the entity's remote identifier, or empty.
func (e Entity) ID() string {
	if v, ok := e["Id"].(string); ok {
		return v
	}
	return ""
}

// SyncToken returns the entity's optimistic-concurrency token, or empty.
func (e Entity) SyncToken() string {
	if v, ok := e["SyncToken"].(string); ok {
		return v
	}
	return ""
}

// queryMaxResults caps query-endpoint result sets.
const queryMaxResults = 1000

// TenantID returns the tenant this client is bound to.
func (c *Client) TenantID() string {
	return c.tenantID
}

func (c *Client) postEntity(ctx context.Context, path string, query url.Values, payload interface{}, key string) (Entity, error) {
	result, err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   path,
		Query:  query,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	return extractEntity(result, key)
}

func extractEntity(result *Result, key string) (Entity, error) {
	var envelope map[string]Entity
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	entity, ok := envelope[key]
	if !ok {
		return nil, fmt.Errorf("response has no %s object", key)
	}
	return entity, nil
}

// GetCustomer fetches one customer by remote id.
func (c *Client) GetCustomer(ctx context.Context, id string) (Entity, error) {
	result, err := c.Call(ctx, Request{
		Method: http.MethodGet,
		Path:   "customer/" + id,
	})
	if err != nil {
		return nil, err
	}
	return extractEntity(result, "Customer")
}

// GetInvoice fetches one invoice by remote id.
func (c *Client) GetInvoice(ctx context.Context, id string) (Entity, error) {
	result, err := c.Call(ctx, Request{
		Method: http.MethodGet,
		Path:   "invoice/" + id,
	})
	if err != nil {
		return nil, err
	}
	return extractEntity(result, "Invoice")
}

// CreateCustomer creates a customer and returns the created object.
func (c *Client) CreateCustomer(ctx context.Context, payload interface{}) (Entity, error) {
	return c.postEntity(ctx, "customer", nil, payload, "Customer")
}

// UpdateCustomer performs a full update of an existing customer. The payload
// must carry Id and SyncToken.
func (c *Client) UpdateCustomer(ctx context.Context, payload interface{}) (Entity, error) {
	return c.postEntity(ctx, "customer", nil, payload, "Customer")
}

// QueryCustomers runs a query-language WHERE clause against customers and
// returns the matching objects, capped at the query endpoint's maximum.
func (c *Client) QueryCustomers(ctx context.Context, where string) ([]Entity, error) {
	stmt := "SELECT * FROM Customer"
	if where != "" {
		stmt += " WHERE " + where
	}
	stmt += " MAXRESULTS " + strconv.Itoa(queryMaxResults)

	q := url.Values{}
	q.Set("query", stmt)

	result, err := c.Call(ctx, Request{
		Method: http.MethodGet,
		Path:   "query",
		Query:  q,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		QueryResponse struct {
			Customer []Entity `json:"Customer"`
		} `json:"QueryResponse"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.QueryResponse.Customer, nil
}

// CreateInvoice creates an invoice and returns the created object.
func (c *Client) CreateInvoice(ctx context.Context, payload interface{}) (Entity, error) {
	return c.postEntity(ctx, "invoice", nil, payload, "Invoice")
}

// SparseUpdateInvoice updates only the fields present in the payload. The
// payload must carry Id and SyncToken; the sparse flag is added here.
func (c *Client) SparseUpdateInvoice(ctx context.Context, payload map[string]interface{}) (Entity, error) {
	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["sparse"] = true
	return c.postEntity(ctx, "invoice", nil, body, "Invoice")
}

// VoidInvoice voids an invoice by id and sync token.
func (c *Client) VoidInvoice(ctx context.Context, id, syncToken string) (Entity, error) {
	q := url.Values{}
	q.Set("operation", "void")
	payload := map[string]interface{}{
		"Id":        id,
		"SyncToken": syncToken,
	}
	return c.postEntity(ctx, "invoice", q, payload, "Invoice")
}

// InvoicePDF fetches the rendered PDF for an invoice.
func (c *Client) InvoicePDF(ctx context.Context, id string) ([]byte, error) {
	result, err := c.Call(ctx, Request{
		Method: http.MethodGet,
		Path:   "invoice/" + id + "/pdf",
		Binary: true,
	})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// SendInvoice emails an invoice. The recipient address travels as a query
// parameter and is URL-encoded; addresses with plus signs or unicode must
// survive the trip verbatim.
func (c *Client) SendInvoice(ctx context.Context, id, sendTo string) (Entity, error) {
	q := url.Values{}
	q.Set("sendTo", sendTo)
	return c.postEntity(ctx, "invoice/"+id+"/send", q, nil, "Invoice")
}

// CreatePayment creates a payment and returns the created object.
func (c *Client) CreatePayment(ctx context.Context, payload interface{}) (Entity, error) {
	return c.postEntity(ctx, "payment", nil, payload, "Payment")
}

// PaymentPDF fetches the rendered PDF for a payment receipt.
func (c *Client) PaymentPDF(ctx context.Context, id string) ([]byte, error) {
	result, err := c.Call(ctx, Request{
		Method: http.MethodGet,
		Path:   "payment/" + id + "/pdf",
		Binary: true,
	})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// SendPayment emails a payment receipt.
func (c *Client) SendPayment(ctx context.Context, id, sendTo string) (Entity, error) {
	q := url.Values{}
	q.Set("sendTo", sendTo)
	return c.postEntity(ctx, "payment/"+id+"/send", q, nil, "Payment")
}

// CompanyInfo fetches the connected company profile. Useful as a connection
// health check right after the authorization flow.
func (c *Client) CompanyInfo(ctx context.Context) (Entity, error) {
	result, err := c.Call(ctx, Request{
		Method: http.MethodGet,
		Path:   "companyinfo/" + c.tenantID,
	})
	if err != nil {
		return nil, err
	}
	return extractEntity(result, "CompanyInfo")
}
