// Package payment builds GoCardless payment batches from invoice requests.
//
// The invoice table holds one row per invoice with item_lines.<n>.amount and
// payments.<n>.amount columns, usually preceded by meta rows giving each
// payment its charge date. Build validates the amounts, joins each invoice to
// the customer export on the email address and emits one payment row per
// invoice and per payments.<n> column.
//
// A batch is all-or-nothing: any broken invariant fails the whole build with an
// *Error listing the offending rows.
package payment

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nao1215/invoiceprep"
	"github.com/nao1215/invoiceprep/meta"
	"github.com/shopspring/decimal"
)

// Currency of every generated payment.
const Currency = "GBP"

// Customer export columns.
const (
	ColMandateID     = "mandate.id"
	ColCustomerID    = "customer.id"
	ColGivenName     = "customer.given_name"
	ColFamilyName    = "customer.family_name"
	ColCompanyName   = "customer.company_name"
	ColCustomerEmail = "customer.email"
)

// Generated payment columns.
const (
	ColAmount      = "payment.amount"
	ColCurrency    = "payment.currency"
	ColDescription = "payment.description"
	ColChargeDate  = "payment.charge_date"
	ColInvoiceID   = "payment.metadata.INVOICE_ID"
	ColInvoiceDate = "payment.metadata.INVOICE_DATE"
)

// chargeDateTag is the meta tag giving a payment its charge date.
const chargeDateTag = "charge_date"

var (
	itemLineAmountPattern = regexp.MustCompile(`^item_lines\.(\d+)\.amount$`)
	paymentAmountPattern  = regexp.MustCompile(`^payments\.(\d+)\.amount$`)
)

// CustomerColumns returns the columns required in the customer export.
func CustomerColumns() []string {
	return []string{ColMandateID, ColCustomerID, ColGivenName, ColFamilyName, ColCompanyName, ColCustomerEmail}
}

// OutputColumns returns the columns of a payment batch, in order.
func OutputColumns() []string {
	return append(CustomerColumns(), ColAmount, ColCurrency, ColDescription, ColChargeDate, ColInvoiceID, ColInvoiceDate)
}

// amountColumn is an item_lines.<n>.amount or payments.<n>.amount column.
type amountColumn struct {
	name  string
	index string
	pos   int
}

// invoice is a data row with its amounts parsed.
type invoice struct {
	record     int
	customerID string
	email      string
	total      decimal.Decimal
	itemsTotal decimal.Decimal
	payments   []decimal.Decimal
}

func (inv invoice) paymentsTotal() decimal.Decimal {
	return decimal.Sum(decimal.Zero, inv.payments...)
}

func (inv invoice) unmatched() decimal.Decimal {
	return inv.total.Sub(inv.itemsTotal).Abs().Add(inv.total.Sub(inv.paymentsTotal()).Abs())
}

// Builder builds payment batches.
type Builder struct {
	cfg      Config
	logger   *slog.Logger
	expander *meta.Expander
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger receiving progress and excluded invoices.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithExpander sets the expander applied to the invoice table.
func WithExpander(e *meta.Expander) Option {
	return func(b *Builder) { b.expander = e }
}

// WithClock sets the clock giving the default invoice date.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder returns a Builder for cfg.
func NewBuilder(cfg Config, opts ...Option) *Builder {
	b := &Builder{cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if b.expander == nil {
		b.expander = meta.NewExpander(meta.WithLogger(b.logger))
	}
	return b
}

// Build builds a payment batch with a new Builder.
func Build(customers, invoices *invoiceprep.Table, cfg Config, opts ...Option) (*invoiceprep.Table, error) {
	return NewBuilder(cfg, opts...).Build(customers, invoices)
}

// Build validates the invoices, joins them to the customers and returns one
// payment row per invoice and payments.<n>.amount column, with OutputColumns.
// Meta rows still present in invoices are expanded first.
func (b *Builder) Build(customers, invoices *invoiceprep.Table) (*invoiceprep.Table, error) {
	if customers == nil || invoices == nil {
		return nil, errors.New("customers and invoices tables cannot be nil")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	table, err := b.expander.Expand(invoices)
	if err != nil {
		return nil, fmt.Errorf("failed to expand invoice meta rows: %w", err)
	}
	if err := b.checkColumns(customers, table); err != nil {
		return nil, err
	}

	directory := dedupeCustomers(customers)

	items, payments, err := amountColumns(table)
	if err != nil {
		return nil, err
	}

	parsed, err := b.parseInvoices(table, items, payments)
	if err != nil {
		return nil, err
	}
	if err := checkAmounts(table, parsed); err != nil {
		return nil, err
	}
	if err := checkDuplicateCustomers(table, parsed); err != nil {
		return nil, err
	}

	retained := b.filterPaymentMethod(table, parsed)
	if err := checkVoid(table, retained); err != nil {
		return nil, err
	}

	matches, err := join(table, retained, directory)
	if err != nil {
		return nil, err
	}
	b.logger.Info("invoices to process", "count", len(retained))

	out, err := b.scatter(table, retained, matches, directory, payments)
	if err != nil {
		return nil, err
	}
	if err := checkTotals(out, table, retained); err != nil {
		return nil, err
	}

	b.logger.Info("generated payments", "payments", out.Len(), "invoices", len(retained))
	return out, nil
}

// checkColumns fails when a required customer or invoice column is missing.
func (b *Builder) checkColumns(customers, invoices *invoiceprep.Table) error {
	if missing := customers.MissingColumns(CustomerColumns()...); len(missing) > 0 {
		return schemaError(missing, "missing required columns from customer table")
	}

	required := []string{b.cfg.CustomerIDField, b.cfg.EmailField, b.cfg.TotalAmountField}
	if b.cfg.filtersPaymentMethod() {
		required = append(required, b.cfg.PaymentMethodField)
	}
	if missing := invoices.MissingColumns(required...); len(missing) > 0 {
		return schemaError(missing, "missing required columns from invoice table")
	}
	return nil
}

// dedupeCustomers keeps the last customer of each case-insensitive email and
// drops the payment columns of earlier exports.
func dedupeCustomers(customers *invoiceprep.Table) *invoiceprep.Table {
	emailPos := customers.ColumnIndex(ColCustomerEmail)

	last := make(map[string]int, customers.Len())
	for i, record := range customers.Records {
		last[normalizeEmail(record[emailPos])] = i
	}

	var keep []int
	for i, record := range customers.Records {
		if last[normalizeEmail(record[emailPos])] == i {
			keep = append(keep, i)
		}
	}

	return customers.Subset(keep).SelectColumns(func(name string) bool {
		return !strings.Contains(name, "payment.")
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// amountColumns finds the item line and payment amount columns in table order.
func amountColumns(t *invoiceprep.Table) (items, payments []amountColumn, err error) {
	for pos, name := range t.Headers {
		if m := itemLineAmountPattern.FindStringSubmatch(name); m != nil {
			items = append(items, amountColumn{name: name, index: m[1], pos: pos})
		}
		if m := paymentAmountPattern.FindStringSubmatch(name); m != nil {
			payments = append(payments, amountColumn{name: name, index: m[1], pos: pos})
		}
	}
	if len(items) == 0 {
		return nil, nil, schemaError([]string{"item_lines.<n>.amount"}, "no item lines in invoice table")
	}
	if len(payments) == 0 {
		return nil, nil, schemaError([]string{"payments.<n>.amount"}, "no payments in invoice table")
	}
	return items, payments, nil
}

// parseAmount converts a cell to a decimal. Empty cells are zero.
func parseAmount(value string) (decimal.Decimal, error) {
	if invoiceprep.IsEmpty(value) {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(value))
}

// parseInvoices parses the amounts of every data row. All non-numeric cells
// are reported together.
func (b *Builder) parseInvoices(t *invoiceprep.Table, items, payments []amountColumn) ([]invoice, error) {
	totalPos := t.ColumnIndex(b.cfg.TotalAmountField)
	idPos := t.ColumnIndex(b.cfg.CustomerIDField)
	emailPos := t.ColumnIndex(b.cfg.EmailField)

	var problems []string
	var badRows []int
	invoices := make([]invoice, 0, t.Len())

	for i, record := range t.Records {
		bad := false
		parse := func(name string, pos int) decimal.Decimal {
			d, err := parseAmount(record[pos])
			if err != nil {
				problems = append(problems, fmt.Sprintf("column %s row %d: %q is not a number", name, i+1, record[pos]))
				bad = true
			}
			return d
		}

		inv := invoice{
			record:     i,
			customerID: record[idPos],
			email:      record[emailPos],
			total:      parse(b.cfg.TotalAmountField, totalPos),
			itemsTotal: decimal.Zero,
		}
		for _, c := range items {
			inv.itemsTotal = inv.itemsTotal.Add(parse(c.name, c.pos))
		}
		for _, c := range payments {
			inv.payments = append(inv.payments, parse(c.name, c.pos))
		}

		if bad {
			badRows = append(badRows, i)
		}
		invoices = append(invoices, inv)
	}

	if len(problems) > 0 {
		return nil, validationError([]*invoiceprep.Table{t.Subset(badRows)},
			"non-numeric amounts: %s", strings.Join(problems, "; "))
	}
	return invoices, nil
}

// checkAmounts fails when a total differs from the sum of its item lines or of
// its payments.
func checkAmounts(t *invoiceprep.Table, invoices []invoice) error {
	var rows []int
	var unmatched []string
	for _, inv := range invoices {
		if d := inv.unmatched(); !d.IsZero() {
			rows = append(rows, inv.record)
			unmatched = append(unmatched, d.String())
		}
	}
	if len(rows) == 0 {
		return nil
	}

	diagnostic, err := t.Subset(rows).WithColumn("unmatched_amounts", unmatched)
	if err != nil {
		diagnostic = t.Subset(rows)
	}
	return validationError([]*invoiceprep.Table{diagnostic}, "%d invoices with invalid amounts", len(rows))
}

// checkDuplicateCustomers fails when several invoices share a customer id.
func checkDuplicateCustomers(t *invoiceprep.Table, invoices []invoice) error {
	counts := make(map[string]int, len(invoices))
	for _, inv := range invoices {
		counts[inv.customerID]++
	}

	var rows []int
	for _, inv := range invoices {
		if counts[inv.customerID] > 1 {
			rows = append(rows, inv.record)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return validationError([]*invoiceprep.Table{t.Subset(rows)},
		"%d invoices belong to customers with duplicate invoices", len(rows))
}

// filterPaymentMethod keeps the invoices paid with the configured method and
// logs the others.
func (b *Builder) filterPaymentMethod(t *invoiceprep.Table, invoices []invoice) []invoice {
	if !b.cfg.filtersPaymentMethod() {
		return invoices
	}

	methodPos := t.ColumnIndex(b.cfg.PaymentMethodField)
	var kept []invoice
	var excluded []string
	for _, inv := range invoices {
		if strings.TrimSpace(t.Records[inv.record][methodPos]) == b.cfg.PaymentMethodValue {
			kept = append(kept, inv)
			continue
		}
		excluded = append(excluded, inv.customerID)
	}

	if len(excluded) > 0 {
		b.logger.Warn("invoices with other payment method",
			"count", len(excluded),
			"payment_method", b.cfg.PaymentMethodValue,
			"customer_ids", strings.Join(excluded, ","))
	}
	b.logger.Info("invoices with payment method", "count", len(kept), "payment_method", b.cfg.PaymentMethodValue)
	return kept
}

// checkVoid fails when a retained invoice has a total of zero or less.
func checkVoid(t *invoiceprep.Table, invoices []invoice) error {
	var rows []int
	for _, inv := range invoices {
		if !inv.total.IsPositive() {
			rows = append(rows, inv.record)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return validationError([]*invoiceprep.Table{t.Subset(rows)},
		"%d void invoices: set another payment method and handle these separately", len(rows))
}

// join returns, for each invoice, the position of its customer in directory.
func join(t *invoiceprep.Table, invoices []invoice, directory *invoiceprep.Table) ([]int, error) {
	emailPos := directory.ColumnIndex(ColCustomerEmail)
	index := make(map[string]int, directory.Len())
	for i, record := range directory.Records {
		if key := normalizeEmail(record[emailPos]); key != "" {
			index[key] = i
		}
	}

	matches := make([]int, len(invoices))
	var rows []int
	var emails []string
	for j, inv := range invoices {
		pos, ok := index[normalizeEmail(inv.email)]
		if !ok {
			rows = append(rows, inv.record)
			emails = append(emails, fmt.Sprintf("%q", inv.email))
			continue
		}
		matches[j] = pos
	}

	if len(rows) > 0 {
		return nil, validationError([]*invoiceprep.Table{t.Subset(rows)},
			"%d invoices with missing customer account: %s", len(rows), strings.Join(emails, ", "))
	}
	return matches, nil
}

// scatter emits one payment per payments.<n>.amount column and invoice.
func (b *Builder) scatter(t *invoiceprep.Table, invoices []invoice, matches []int, directory *invoiceprep.Table, payments []amountColumn) (*invoiceprep.Table, error) {
	invoiceDate := b.cfg.InvoiceDate
	if invoiceDate == "" {
		invoiceDate = b.now().Format(time.DateOnly)
	}

	customerPos := make([]int, 0, len(CustomerColumns()))
	for _, name := range CustomerColumns() {
		customerPos = append(customerPos, directory.ColumnIndex(name))
	}

	records := make([][]string, 0, len(payments)*len(invoices))
	for p, column := range payments {
		chargeDateColumn := "payments." + column.index + "." + chargeDateTag
		chargePos := t.ColumnIndex(chargeDateColumn)
		if chargePos < 0 {
			b.logger.Warn("no charge date for payment", "column", chargeDateColumn)
		}

		for j, inv := range invoices {
			customer := directory.Records[matches[j]]
			invoiceID := b.cfg.IDPrefix + "/" + inv.customerID

			chargeDate := ""
			if chargePos >= 0 {
				chargeDate = t.Records[inv.record][chargePos]
			}

			row := make([]string, 0, len(OutputColumns()))
			for _, pos := range customerPos {
				row = append(row, customer[pos])
			}
			row = append(row,
				inv.payments[p].String(),
				Currency,
				invoiceID+"/"+column.index,
				chargeDate,
				invoiceID,
				invoiceDate,
			)
			records = append(records, row)
		}
	}

	return invoiceprep.NewTable(OutputColumns(), records)
}

// checkTotals fails when the payments do not add up to the invoiced amount.
func checkTotals(out, t *invoiceprep.Table, invoices []invoice) error {
	paid := decimal.Zero
	amountPos := out.ColumnIndex(ColAmount)
	for _, record := range out.Records {
		amount, err := decimal.NewFromString(record[amountPos])
		if err != nil {
			return fmt.Errorf("failed to read generated payment amount: %w", err)
		}
		paid = paid.Add(amount)
	}

	invoiced := decimal.Zero
	rows := make([]int, 0, len(invoices))
	for _, inv := range invoices {
		invoiced = invoiced.Add(inv.total)
		rows = append(rows, inv.record)
	}

	if !paid.Equal(invoiced) {
		return validationError([]*invoiceprep.Table{out, t.Subset(rows)},
			"payment total %s differs from invoice total %s", paid, invoiced)
	}
	return nil
}
