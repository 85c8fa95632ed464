package payment

import (
	"strings"
	"time"
)

// Default invoice column names.
const (
	DefaultCustomerIDField  = "customer_id"
	DefaultTotalAmountField = "total_amount"
	DefaultEmailField       = "gocardless_email"
)

// Config selects the invoice columns Build works on.
type Config struct {
	// IDPrefix is the first part of the generated invoice id "<prefix>/<customer id>".
	IDPrefix string `yaml:"invoice_id_prefix"`
	// CustomerIDField holds the customer id; there must be one invoice per customer.
	CustomerIDField string `yaml:"customer_id_field"`
	// TotalAmountField holds the invoice total, checked against item lines and payments.
	TotalAmountField string `yaml:"total_amount_field"`
	// PaymentMethodField and PaymentMethodValue, set together, keep only the
	// invoices paid with that method.
	PaymentMethodField string `yaml:"payment_method_field"`
	PaymentMethodValue string `yaml:"payment_method_value"`
	// EmailField holds the email joined with the customer export.
	EmailField string `yaml:"email_field"`
	// InvoiceDate is the YYYY-MM-DD invoice date. Empty means today.
	InvoiceDate string `yaml:"invoice_date"`
}

// DefaultConfig returns a Config with the default column names and no prefix.
func DefaultConfig() Config {
	return Config{
		CustomerIDField:  DefaultCustomerIDField,
		TotalAmountField: DefaultTotalAmountField,
		EmailField:       DefaultEmailField,
	}
}

// Validate checks that the configuration is complete and consistent.
func (c Config) Validate() error {
	if strings.TrimSpace(c.IDPrefix) == "" {
		return configError("invoice id prefix is required")
	}
	for _, field := range []struct{ name, value string }{
		{"customer id field", c.CustomerIDField},
		{"total amount field", c.TotalAmountField},
		{"email field", c.EmailField},
	} {
		if strings.TrimSpace(field.value) == "" {
			return configError("%s is required", field.name)
		}
	}
	if (c.PaymentMethodField == "") != (c.PaymentMethodValue == "") {
		return configError("payment method field and payment method value must be provided together")
	}
	if c.InvoiceDate != "" {
		if _, err := time.Parse(time.DateOnly, c.InvoiceDate); err != nil {
			return configError("invoice date %q is not YYYY-MM-DD", c.InvoiceDate)
		}
	}
	return nil
}

// filtersPaymentMethod reports whether invoices are filtered by payment method.
func (c Config) filtersPaymentMethod() bool {
	return c.PaymentMethodField != "" && c.PaymentMethodValue != ""
}
