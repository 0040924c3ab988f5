package mapping

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/records"
)

// Customer type references configured in the accounting platform.
const (
	applicantCustomerType = "528730"
	studentCustomerType   = "528694"
)

const dateLayout = "2006-01-02"

// BuildPayload produces the remote payload for any entity kind.
func BuildPayload(e *enrich.Enriched) (map[string]interface{}, error) {
	switch e.Record.Kind {
	case records.KindApplicant, records.KindStudent:
		return BuildCustomer(e)
	case records.KindInvoice:
		return BuildInvoice(e)
	case records.KindPayment:
		return BuildPayment(e)
	default:
		return nil, fmt.Errorf("no payload mapping for entity kind %s", e.Record.Kind)
	}
}

// BuildCustomer interprets the entity kind's mapping table into a customer
// payload. Custom fields with blank values are dropped, the email only ships
// when it parses as a valid address, and the phone travels in the provider's
// nested form.
func BuildCustomer(e *enrich.Enriched) (map[string]interface{}, error) {
	mappings := MappingsFor(e.Record.Kind)
	if mappings == nil {
		return nil, fmt.Errorf("no customer mapping for entity kind %s", e.Record.Kind)
	}

	payload := make(map[string]interface{})
	var customFields []map[string]interface{}

	for i := range mappings {
		m := &mappings[i]
		value := m.Evaluate(e)
		if m.IsCustomField() {
			if value == "" {
				continue
			}
			customFields = append(customFields, map[string]interface{}{
				"DefinitionId": m.DefinitionID(),
				"Type":         "StringType",
				"StringValue":  value,
			})
			continue
		}
		if value != "" {
			payload[m.Dest] = value
		}
	}

	if phone := e.Record.Phone; phone != "" {
		payload["PrimaryPhone"] = map[string]interface{}{"FreeFormNumber": phone}
	}
	if email := validEmail(e.Record.Email); email != "" {
		payload["PrimaryEmailAddr"] = map[string]interface{}{"Address": email}
	}

	switch e.Record.Kind {
	case records.KindApplicant:
		payload["CustomerTypeRef"] = map[string]interface{}{"value": applicantCustomerType}
		payload["Notes"] = "Applicant synchronized from MIS - Tracking ID: " + e.Record.TrackingID
	case records.KindStudent:
		payload["CustomerTypeRef"] = map[string]interface{}{"value": studentCustomerType}
		payload["Notes"] = "Student synchronized from MIS - Registration Number: " + e.Record.RegNo
	}

	if customFields != nil {
		payload["CustomField"] = customFields
	}

	return payload, nil
}

// BuildInvoice produces an invoice payload. The record must already carry the
// remote id of the customer the invoice belongs to.
func BuildInvoice(e *enrich.Enriched) (map[string]interface{}, error) {
	rec := &e.Record
	if rec.CustomerRemoteID == "" {
		return nil, fmt.Errorf("invoice %d has no customer remote id", rec.ID)
	}

	payload := map[string]interface{}{
		"CustomerRef": map[string]interface{}{"value": rec.CustomerRemoteID},
		"DocNumber":   rec.ReferenceNo,
		"Line": []map[string]interface{}{
			{
				"Amount":      rec.Amount,
				"DetailType":  "SalesItemLineDetail",
				"Description": lineDescription(e),
				"SalesItemLineDetail": map[string]interface{}{
					"ItemRef": map[string]interface{}{"value": "1"},
				},
			},
		},
	}
	if d := formatDate(rec.TxnDate); d != "" {
		payload["TxnDate"] = d
	}
	if d := formatDate(rec.DueDate); d != "" {
		payload["DueDate"] = d
	}
	return payload, nil
}

// BuildPayment produces a payment payload, linked to its invoice when the
// invoice's remote id is known.
func BuildPayment(e *enrich.Enriched) (map[string]interface{}, error) {
	rec := &e.Record
	if rec.CustomerRemoteID == "" {
		return nil, fmt.Errorf("payment %d has no customer remote id", rec.ID)
	}

	payload := map[string]interface{}{
		"CustomerRef":   map[string]interface{}{"value": rec.CustomerRemoteID},
		"TotalAmt":      rec.Amount,
		"PaymentRefNum": rec.ReferenceNo,
	}
	if d := formatDate(rec.TxnDate); d != "" {
		payload["TxnDate"] = d
	}
	if rec.InvoiceRemoteID != "" {
		payload["Line"] = []map[string]interface{}{
			{
				"Amount": rec.Amount,
				"LinkedTxn": []map[string]interface{}{
					{"TxnId": rec.InvoiceRemoteID, "TxnType": "Invoice"},
				},
			},
		}
	}
	return payload, nil
}

func lineDescription(e *enrich.Enriched) string {
	if name := e.Name(enrich.KindProgram); name != "" {
		return "Tuition - " + name
	}
	return "Tuition"
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// validEmail returns the address if it parses as a bare RFC 5322 address,
// otherwise empty. The provider hard-rejects malformed addresses, so a bad
// one is dropped rather than failing the whole record.
func validEmail(email string) string {
	if email == "" {
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ""
	}
	return email
}
