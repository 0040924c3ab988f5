package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/qbclient"
	"github.com/eaur/qbsync/internal/records"
)

type qbPusher struct {
	client *qbclient.Client
}

// NewPusher creates the production RemotePusher on top of the API client.
func NewPusher(client *qbclient.Client) RemotePusher {
	return &qbPusher{client: client}
}

// Push delivers one record. Records with a remote id are updated in place;
// the rest are created. A create that trips the remote's duplicate-name guard
// adopts the existing object instead of failing, which keeps re-runs after a
// crashed batch idempotent.
func (p *qbPusher) Push(ctx context.Context, e *enrich.Enriched, payload map[string]interface{}) (string, error) {
	switch e.Record.Kind {
	case records.KindApplicant, records.KindStudent:
		return p.pushCustomer(ctx, &e.Record, payload)
	case records.KindInvoice:
		return p.pushInvoice(ctx, &e.Record, payload)
	case records.KindPayment:
		return p.pushPayment(ctx, &e.Record, payload)
	default:
		return "", fmt.Errorf("cannot push entity kind %s", e.Record.Kind)
	}
}

func (p *qbPusher) pushCustomer(ctx context.Context, rec *records.Record, payload map[string]interface{}) (string, error) {
	if rec.HasRemoteID() {
		return p.updateCustomer(ctx, *rec.RemoteID, payload)
	}

	created, err := p.client.CreateCustomer(ctx, payload)
	if err == nil {
		return created.ID(), nil
	}

	// A previous run may have created the customer and crashed before the
	// local status write. The remote enforces DisplayName uniqueness, so the
	// duplicate fault identifies exactly that case.
	if isDuplicateName(err) {
		displayName, _ := payload["DisplayName"].(string)
		if displayName != "" {
			existing, adoptErr := p.findCustomerByDisplayName(ctx, displayName)
			if adoptErr == nil && existing != "" {
				return p.updateCustomer(ctx, existing, payload)
			}
		}
	}
	return "", err
}

func (p *qbPusher) updateCustomer(ctx context.Context, remoteID string, payload map[string]interface{}) (string, error) {
	current, err := p.client.GetCustomer(ctx, remoteID)
	if err != nil {
		return "", err
	}

	body := clonePayload(payload)
	body["Id"] = remoteID
	body["SyncToken"] = current.SyncToken()

	updated, err := p.client.UpdateCustomer(ctx, body)
	if err != nil {
		return "", err
	}
	return updated.ID(), nil
}

func (p *qbPusher) findCustomerByDisplayName(ctx context.Context, displayName string) (string, error) {
	escaped := strings.ReplaceAll(displayName, "'", "\\'")
	matches, err := p.client.QueryCustomers(ctx, "DisplayName = '"+escaped+"'")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0].ID(), nil
}

func (p *qbPusher) pushInvoice(ctx context.Context, rec *records.Record, payload map[string]interface{}) (string, error) {
	if rec.HasRemoteID() {
		current, err := p.client.GetInvoice(ctx, *rec.RemoteID)
		if err != nil {
			return "", err
		}
		body := clonePayload(payload)
		body["Id"] = *rec.RemoteID
		body["SyncToken"] = current.SyncToken()

		updated, err := p.client.SparseUpdateInvoice(ctx, body)
		if err != nil {
			return "", err
		}
		return updated.ID(), nil
	}

	created, err := p.client.CreateInvoice(ctx, payload)
	if err != nil {
		return "", err
	}
	return created.ID(), nil
}

func (p *qbPusher) pushPayment(ctx context.Context, rec *records.Record, payload map[string]interface{}) (string, error) {
	// Payments are immutable once recorded; a payment that already has a
	// remote id is done.
	if rec.HasRemoteID() {
		return *rec.RemoteID, nil
	}

	created, err := p.client.CreatePayment(ctx, payload)
	if err != nil {
		return "", err
	}
	return created.ID(), nil
}

func clonePayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func isDuplicateName(err error) bool {
	var remoteErr *qbclient.RemoteError
	return errors.As(err, &remoteErr) && strings.Contains(remoteErr.Body, "Duplicate Name Exists")
}
