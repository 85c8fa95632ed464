package payment

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nao1215/invoiceprep"
	"github.com/nao1215/invoiceprep/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invoiceHeaders = []string{
	"meta", "amount_due", "gocardless_email", "item_lines.1.amount", "item_lines.2.amount",
	"payments.1.amount", "parent_id", "payment_method",
}

var chargeDateRow = []string{"charge_date", "", "", "", "", "2023-02-15", "", ""}

func invoiceRow(id, email, total, item1, item2, payment string) []string {
	return []string{"", total, email, item1, item2, payment, id, "gocardless"}
}

func customerRow(mandate, id, email string) []string {
	return []string{mandate, id, "M", "C", "", email}
}

func newTable(t *testing.T, headers []string, records ...[]string) *invoiceprep.Table {
	t.Helper()
	table, err := invoiceprep.NewTable(headers, records)
	require.NoError(t, err)
	return table
}

func customerTable(t *testing.T, records ...[]string) *invoiceprep.Table {
	t.Helper()
	return newTable(t, CustomerColumns(), records...)
}

func testConfig() Config {
	return Config{
		IDPrefix:           "INV123",
		CustomerIDField:    "parent_id",
		TotalAmountField:   "amount_due",
		PaymentMethodField: "payment_method",
		PaymentMethodValue: "gocardless",
		EmailField:         "gocardless_email",
		InvoiceDate:        "2023-02-12",
	}
}

func quiet() Option {
	return WithLogger(slog.New(slog.DiscardHandler))
}

func capture(buf *bytes.Buffer) Option {
	return WithLogger(slog.New(slog.NewTextHandler(buf, nil)))
}

func requirePaymentError(t *testing.T, err error, kind error) *Error {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	return perr
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("builds one payment per invoice", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t, invoiceHeaders,
			chargeDateRow,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)

		out, err := Build(customers, invoices, testConfig(), quiet())

		require.NoError(t, err)
		assert.Equal(t, OutputColumns(), out.Headers)
		assert.Equal(t, [][]string{{
			"MD1", "CU1", "M", "C", "", "m.c@test.email",
			"12.34", "GBP", "INV123/ID123/1", "2023-02-15", "INV123/ID123", "2023-02-12",
		}}, out.Records)
	})

	t.Run("scatters payments column by column", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t,
			customerRow("MD1", "CU1", "a@test.email"),
			customerRow("MD2", "CU2", "b@test.email"),
		)
		invoices := newTable(t,
			[]string{"meta", "amount_due", "gocardless_email", "item_lines.1.amount", "payments.1.amount", "payments.2.amount", "parent_id"},
			[]string{"charge_date", "", "", "", "2023-02-15", "2023-03-15", ""},
			[]string{"", "30", "a@test.email", "30", "10", "20", "ID1"},
			[]string{"", "20", "b@test.email", "20", "20", "", "ID2"},
		)
		cfg := testConfig()
		cfg.PaymentMethodField = ""
		cfg.PaymentMethodValue = ""

		out, err := Build(customers, invoices, cfg, quiet())

		require.NoError(t, err)
		require.Equal(t, 4, out.Len())
		var got [][]string
		for i := range out.Records {
			got = append(got, []string{
				out.Value(i, ColDescription),
				out.Value(i, ColAmount),
				out.Value(i, ColChargeDate),
				out.Value(i, ColMandateID),
			})
		}
		assert.Equal(t, [][]string{
			{"INV123/ID1/1", "10", "2023-02-15", "MD1"},
			{"INV123/ID2/1", "20", "2023-02-15", "MD2"},
			{"INV123/ID1/2", "20", "2023-03-15", "MD1"},
			{"INV123/ID2/2", "0", "", "MD2"},
		}, got)
	})

	t.Run("sums amounts exactly", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "0.3", "0.1", "0.2", "0.3"),
		)

		out, err := Build(customers, invoices, testConfig(), quiet())

		require.NoError(t, err)
		assert.Equal(t, "0.3", out.Value(0, ColAmount))
	})

	t.Run("accepts an already expanded table", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		raw := newTable(t, invoiceHeaders,
			chargeDateRow,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)
		expanded, err := meta.Expand(raw)
		require.NoError(t, err)

		want, err := Build(customers, raw, testConfig(), quiet())
		require.NoError(t, err)
		got, err := Build(customers, expanded, testConfig(), quiet())

		require.NoError(t, err)
		assert.Equal(t, want.Records, got.Records)
	})

	t.Run("matches emails case-insensitively and keeps the last customer", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t,
			customerRow("MD0", "CU0", "M.C@test.email"),
			customerRow("MD1", "CU1", " m.c@test.email "),
		)
		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "M.C@TEST.EMAIL", "12.34", "10", "2.34", "12.34"),
		)

		out, err := Build(customers, invoices, testConfig(), quiet())

		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "MD1", out.Value(0, ColMandateID))
		assert.Equal(t, "CU1", out.Value(0, ColCustomerID))
	})

	t.Run("ignores payment columns of earlier exports", func(t *testing.T) {
		t.Parallel()

		customers := newTable(t,
			append(CustomerColumns(), "payment.amount", "payment.charge_date"),
			[]string{"MD1", "CU1", "M", "C", "", "m.c@test.email", "99", "2020-01-01"},
		)
		invoices := newTable(t, invoiceHeaders,
			chargeDateRow,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)

		out, err := Build(customers, invoices, testConfig(), quiet())

		require.NoError(t, err)
		assert.Equal(t, OutputColumns(), out.Headers)
		assert.Equal(t, "12.34", out.Value(0, ColAmount))
		assert.Equal(t, "2023-02-15", out.Value(0, ColChargeDate))
	})

	t.Run("excludes invoices with another payment method", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		cheque := invoiceRow("ID456", "unknown@test.email", "5", "5", "", "5")
		cheque[len(cheque)-1] = "cheque"
		invoices := newTable(t, invoiceHeaders,
			chargeDateRow,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
			cheque,
		)
		var logs bytes.Buffer

		out, err := Build(customers, invoices, testConfig(), capture(&logs))

		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "INV123/ID123", out.Value(0, ColInvoiceID))
		assert.Contains(t, logs.String(), "level=WARN")
		assert.Contains(t, logs.String(), "ID456")
	})

	t.Run("uses the clock when no invoice date is set", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)
		cfg := testConfig()
		cfg.InvoiceDate = ""
		clock := func() time.Time { return time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC) }

		out, err := Build(customers, invoices, cfg, quiet(), WithClock(clock))

		require.NoError(t, err)
		assert.Equal(t, "2024-03-01", out.Value(0, ColInvoiceDate))
	})

	t.Run("leaves the charge date empty without a charge date column", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)
		var logs bytes.Buffer

		out, err := Build(customers, invoices, testConfig(), capture(&logs))

		require.NoError(t, err)
		assert.Equal(t, "", out.Value(0, ColChargeDate))
		assert.Contains(t, logs.String(), "payments.1.charge_date")
	})

	t.Run("returns error for nil tables", func(t *testing.T) {
		t.Parallel()

		_, err := Build(nil, nil, testConfig(), quiet())

		assert.Error(t, err)
	})
}

func TestBuild_SchemaErrors(t *testing.T) {
	t.Parallel()

	validInvoices := func(t *testing.T) *invoiceprep.Table {
		return newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)
	}

	t.Run("missing customer columns", func(t *testing.T) {
		t.Parallel()

		customers := newTable(t, []string{"customer.email", "customer.id"},
			[]string{"m.c@test.email", "CU1"},
		)

		_, err := Build(customers, validInvoices(t), testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrSchema)
		assert.Equal(t, []string{ColMandateID, ColGivenName, ColFamilyName, ColCompanyName}, perr.Columns)
	})

	t.Run("missing invoice columns", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t, []string{"parent_id", "item_lines.1.amount", "payments.1.amount"},
			[]string{"ID123", "1", "1"},
		)

		_, err := Build(customers, invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrSchema)
		assert.Equal(t, []string{"gocardless_email", "amount_due", "payment_method"}, perr.Columns)
	})

	t.Run("no item lines", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t,
			[]string{"amount_due", "gocardless_email", "parent_id", "payment_method", "payments.1.amount", "item_lines.1.amount_net"},
			[]string{"1", "m.c@test.email", "ID123", "gocardless", "1", "1"},
		)

		_, err := Build(customers, invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrSchema)
		assert.Contains(t, perr.Message, "no item lines")
	})

	t.Run("no payments", func(t *testing.T) {
		t.Parallel()

		customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
		invoices := newTable(t,
			[]string{"amount_due", "gocardless_email", "parent_id", "payment_method", "item_lines.1.amount"},
			[]string{"1", "m.c@test.email", "ID123", "gocardless", "1"},
		)

		_, err := Build(customers, invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrSchema)
		assert.Contains(t, perr.Message, "no payments")
	})
}

func TestBuild_ValidationErrors(t *testing.T) {
	t.Parallel()

	customers := func(t *testing.T) *invoiceprep.Table {
		return customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
	}

	t.Run("non-numeric amount", func(t *testing.T) {
		t.Parallel()

		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "twelve", "10", "2.34", "12.34"),
		)

		_, err := Build(customers(t), invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrValidation)
		assert.Contains(t, perr.Message, "amount_due row 1")
		require.Len(t, perr.Rows, 1)
		assert.Equal(t, 1, perr.Rows[0].Len())
	})

	t.Run("totals not matching item lines", func(t *testing.T) {
		t.Parallel()

		invoices := newTable(t, invoiceHeaders,
			chargeDateRow,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2", "12.34"),
			invoiceRow("ID124", "m.c@test.email", "5", "5", "", "5"),
		)

		_, err := Build(customers(t), invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrValidation)
		assert.Contains(t, perr.Message, "invalid amounts")
		require.Len(t, perr.Rows, 1)
		require.Equal(t, 1, perr.Rows[0].Len())
		assert.Equal(t, "ID123", perr.Rows[0].Value(0, "parent_id"))
		assert.Equal(t, "0.34", perr.Rows[0].Value(0, "unmatched_amounts"))
	})

	t.Run("totals not matching payments", func(t *testing.T) {
		t.Parallel()

		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12"),
		)

		_, err := Build(customers(t), invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrValidation)
		assert.Equal(t, "0.34", perr.Rows[0].Value(0, "unmatched_amounts"))
	})

	t.Run("duplicate customer ids", func(t *testing.T) {
		t.Parallel()

		invoices := newTable(t, invoiceHeaders,
			chargeDateRow,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
		)

		_, err := Build(customers(t), invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrValidation)
		assert.Contains(t, perr.Message, "duplicate invoices")
		assert.Equal(t, 2, perr.Rows[0].Len())
	})

	t.Run("void invoices", func(t *testing.T) {
		t.Parallel()

		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "0", "", "", ""),
		)

		_, err := Build(customers(t), invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrValidation)
		assert.Contains(t, perr.Message, "void invoices")
	})

	t.Run("missing customer account", func(t *testing.T) {
		t.Parallel()

		invoices := newTable(t, invoiceHeaders,
			invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
			invoiceRow("ID124", "nobody@test.email", "1", "1", "", "1"),
			invoiceRow("ID125", "", "1", "1", "", "1"),
		)

		_, err := Build(customers(t), invoices, testConfig(), quiet())

		perr := requirePaymentError(t, err, ErrValidation)
		assert.Contains(t, perr.Message, "2 invoices with missing customer account")
		assert.Contains(t, perr.Message, "nobody@test.email")
		assert.Equal(t, 2, perr.Rows[0].Len())
		assert.Contains(t, err.Error(), "ID124")
	})
}

func TestBuild_ConfigErrors(t *testing.T) {
	t.Parallel()

	customers := customerTable(t, customerRow("MD1", "CU1", "m.c@test.email"))
	invoices := newTable(t, invoiceHeaders,
		invoiceRow("ID123", "m.c@test.email", "12.34", "10", "2.34", "12.34"),
	)

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "empty prefix", modify: func(c *Config) { c.IDPrefix = " " }},
		{name: "empty email field", modify: func(c *Config) { c.EmailField = "" }},
		{name: "method field without value", modify: func(c *Config) { c.PaymentMethodValue = "" }},
		{name: "method value without field", modify: func(c *Config) { c.PaymentMethodField = "" }},
		{name: "malformed invoice date", modify: func(c *Config) { c.InvoiceDate = "12/02/2023" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tt.modify(&cfg)

			_, err := Build(customers, invoices, cfg, quiet())

			requirePaymentError(t, err, ErrConfig)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, "customer_id", cfg.CustomerIDField)
	assert.Equal(t, "total_amount", cfg.TotalAmountField)
	assert.Equal(t, "gocardless_email", cfg.EmailField)
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)

	cfg.IDPrefix = "INV"
	assert.NoError(t, cfg.Validate())
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	rows, err := invoiceprep.NewTable([]string{"id"}, [][]string{{"7"}})
	require.NoError(t, err)

	perr := &Error{Kind: ErrValidation, Message: "bad rows", Columns: []string{"a", "b"}, Rows: []*invoiceprep.Table{rows}}

	assert.Equal(t, "validation error: bad rows [a, b]\nid\n7\n", perr.Error())
	assert.ErrorIs(t, perr, ErrValidation)
	assert.NotErrorIs(t, perr, ErrSchema)
}
