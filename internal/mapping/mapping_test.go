package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/records"
)

func ptr(v int64) *int64 { return &v }

func applicantEnriched() *enrich.Enriched {
	return &enrich.Enriched{
		Record: records.Record{
			ID:         1,
			Kind:       records.KindApplicant,
			TrackingID: "APP-2026-001",
			FirstName:  "Aline",
			MiddleName: "M",
			LastName:   "Uwase",
			Sex:        "F",
			NationalID: "1199000000000001",
			Phone:      "+250788000001",
			Email:      "aline@example.com",
			CampusID:   ptr(1),
			IntakeID:   ptr(5),
		},
		Names: map[enrich.Kind]string{
			enrich.KindCampus:      "Main Campus",
			enrich.KindIntake:      "September 2026",
			enrich.KindProgramMode: "Full Time",
		},
	}
}

func customField(t *testing.T, payload map[string]interface{}, definitionID string) string {
	t.Helper()
	fields, ok := payload["CustomField"].([]map[string]interface{})
	require.True(t, ok, "payload must carry a CustomField list")
	for _, f := range fields {
		if f["DefinitionId"] == definitionID {
			return f["StringValue"].(string)
		}
	}
	return ""
}

func TestBuildCustomerApplicant(t *testing.T) {
	t.Parallel()

	payload, err := BuildCustomer(applicantEnriched())
	require.NoError(t, err)

	assert.Equal(t, "APP-2026-001", payload["DisplayName"])
	assert.Equal(t, "Aline", payload["GivenName"])
	assert.Equal(t, "Uwase", payload["FamilyName"])
	assert.Equal(t, "Aline Uwase", payload["CompanyName"])
	assert.Equal(t,
		map[string]interface{}{"FreeFormNumber": "+250788000001"},
		payload["PrimaryPhone"],
	)
	assert.Equal(t,
		map[string]interface{}{"Address": "aline@example.com"},
		payload["PrimaryEmailAddr"],
	)
	assert.Equal(t,
		map[string]interface{}{"value": applicantCustomerType},
		payload["CustomerTypeRef"],
	)

	assert.Equal(t, "Applicant", customField(t, payload, "1000000001"))
	assert.Equal(t, "APP-2026-001", customField(t, payload, "1000000002"))
	assert.Equal(t, "Main Campus", customField(t, payload, "1000000005"))
	assert.Equal(t, "September 2026", customField(t, payload, "1000000006"))
	assert.Equal(t, "Full Time", customField(t, payload, "1000000009"))
}

func TestBuildCustomerStudent(t *testing.T) {
	t.Parallel()

	e := &enrich.Enriched{
		Record: records.Record{
			ID:        2,
			Kind:      records.KindStudent,
			RegNo:     "220001234",
			FirstName: "Eric",
			LastName:  "Mugisha",
			Sex:       "M",
			LevelID:   ptr(3),
			ProgramID: ptr(10),
		},
		Names: map[enrich.Kind]string{
			enrich.KindLevel:   "Year 3",
			enrich.KindProgram: "BSc Computer Science",
		},
	}

	payload, err := BuildCustomer(e)
	require.NoError(t, err)

	assert.Equal(t, "220001234", payload["DisplayName"])
	assert.Equal(t, "Student", customField(t, payload, "1000000001"))
	assert.Equal(t, "220001234", customField(t, payload, "1000000002"))
	assert.Equal(t, "Year 3", customField(t, payload, "1000000004"))
	assert.Equal(t, "BSc Computer Science", customField(t, payload, "1000000007"))
	assert.Equal(t,
		map[string]interface{}{"value": studentCustomerType},
		payload["CustomerTypeRef"],
	)

	// Blank sources never emit custom fields or top-level keys.
	assert.Empty(t, customField(t, payload, "1000000005"), "no campus set")
	assert.Empty(t, customField(t, payload, "1000000008"), "no national id set")
	assert.NotContains(t, payload, "PrimaryPhone")
	assert.NotContains(t, payload, "MiddleName")
}

func TestBuildCustomerDropsInvalidEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{name: "valid", email: "ok@example.com", want: true},
		{name: "plus address", email: "a+b@example.com", want: true},
		{name: "missing domain", email: "broken@", want: false},
		{name: "free text", email: "not an email", want: false},
		{name: "empty", email: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := applicantEnriched()
			e.Record.Email = tt.email

			payload, err := BuildCustomer(e)
			require.NoError(t, err)

			if tt.want {
				assert.Contains(t, payload, "PrimaryEmailAddr")
			} else {
				assert.NotContains(t, payload, "PrimaryEmailAddr",
					"invalid email must be dropped, not sent")
			}
		})
	}
}

func TestBuildInvoice(t *testing.T) {
	t.Parallel()

	txn := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	e := &enrich.Enriched{
		Record: records.Record{
			ID:               3,
			Kind:             records.KindInvoice,
			ReferenceNo:      "INV-0042",
			Amount:           350000,
			TxnDate:          &txn,
			DueDate:          &due,
			CustomerRemoteID: "17",
			ProgramID:        ptr(10),
		},
		Names: map[enrich.Kind]string{enrich.KindProgram: "BSc Computer Science"},
	}

	payload, err := BuildInvoice(e)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"value": "17"}, payload["CustomerRef"])
	assert.Equal(t, "INV-0042", payload["DocNumber"])
	assert.Equal(t, "2026-08-01", payload["TxnDate"])
	assert.Equal(t, "2026-09-30", payload["DueDate"])

	lines := payload["Line"].([]map[string]interface{})
	require.Len(t, lines, 1)
	assert.Equal(t, float64(350000), lines[0]["Amount"])
	assert.Equal(t, "Tuition - BSc Computer Science", lines[0]["Description"])
}

func TestBuildInvoiceRequiresCustomer(t *testing.T) {
	t.Parallel()

	e := &enrich.Enriched{
		Record: records.Record{ID: 3, Kind: records.KindInvoice, ReferenceNo: "INV-0042"},
	}

	_, err := BuildInvoice(e)
	assert.Error(t, err)
}

func TestBuildPaymentLinksInvoice(t *testing.T) {
	t.Parallel()

	e := &enrich.Enriched{
		Record: records.Record{
			ID:               4,
			Kind:             records.KindPayment,
			ReferenceNo:      "PAY-0099",
			Amount:           150000,
			CustomerRemoteID: "17",
			InvoiceRemoteID:  "33",
		},
	}

	payload, err := BuildPayment(e)
	require.NoError(t, err)

	assert.Equal(t, float64(150000), payload["TotalAmt"])
	lines := payload["Line"].([]map[string]interface{})
	require.Len(t, lines, 1)
	linked := lines[0]["LinkedTxn"].([]map[string]interface{})
	require.Len(t, linked, 1)
	assert.Equal(t, "33", linked[0]["TxnId"])
	assert.Equal(t, "Invoice", linked[0]["TxnType"])
}

func TestBuildPayloadDispatch(t *testing.T) {
	t.Parallel()

	_, err := BuildPayload(applicantEnriched())
	require.NoError(t, err)

	_, err = BuildPayload(&enrich.Enriched{Record: records.Record{Kind: records.EntityKind("BOGUS")}})
	assert.Error(t, err)
}

func TestEvaluateConcatSkipsBlanks(t *testing.T) {
	t.Parallel()

	m := FieldMapping{
		Transform: Concat,
		Sources:   []string{SrcFirstName, SrcMiddleName, SrcLastName},
		Sep:       " ",
	}
	e := &enrich.Enriched{
		Record: records.Record{FirstName: "Aline", LastName: "Uwase"},
	}

	assert.Equal(t, "Aline Uwase", m.Evaluate(e))
}
