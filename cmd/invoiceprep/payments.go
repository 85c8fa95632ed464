package main

import (
	"errors"

	"github.com/nao1215/invoiceprep/meta"
	"github.com/nao1215/invoiceprep/payment"
	"github.com/spf13/cobra"
)

func newPaymentsCmd(a *app) *cobra.Command {
	var (
		invoices, customers, output, dash string
		override                          payment.Config
	)

	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Build a GoCardless bulk payment file from invoices",
		Long: `payments checks every invoice (totals against item lines and payments, one
invoice per customer, positive totals), joins it to the GoCardless customer
export on the email address and writes one payment per invoice and
payments.<n>.amount column. Any failed check rejects the whole batch.

Flags override the "payments" section of the configuration file.`,
		Example: `  invoiceprep payments --invoices invoices.csv --customers customers.csv \
    --invoice-id-prefix INV2023 --customer-id-field parent_id \
    --total-amount-field amount_due --payment-method-field payment_method \
    --payment-method-value gocardless --output payments.csv --report report.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if invoices == stdio && customers == stdio {
				return errors.New("--invoices and --customers cannot both read from stdin")
			}

			cfg := a.cfg.Payments
			for _, f := range []struct {
				flag   string
				value  string
				target *string
			}{
				{"invoice-id-prefix", override.IDPrefix, &cfg.IDPrefix},
				{"customer-id-field", override.CustomerIDField, &cfg.CustomerIDField},
				{"total-amount-field", override.TotalAmountField, &cfg.TotalAmountField},
				{"payment-method-field", override.PaymentMethodField, &cfg.PaymentMethodField},
				{"payment-method-value", override.PaymentMethodValue, &cfg.PaymentMethodValue},
				{"email-field", override.EmailField, &cfg.EmailField},
				{"invoice-date", override.InvoiceDate, &cfg.InvoiceDate},
			} {
				if cmd.Flags().Changed(f.flag) {
					*f.target = f.value
				}
			}

			policy, err := a.dashPolicy(cmd, dash)
			if err != nil {
				return err
			}
			customerTable, err := a.readTable(customers)
			if err != nil {
				return err
			}
			invoiceTable, err := a.readTable(invoices)
			if err != nil {
				return err
			}

			logger := a.logger()
			builder := payment.NewBuilder(cfg,
				payment.WithLogger(logger),
				payment.WithExpander(meta.NewExpander(meta.WithDashPolicy(policy), meta.WithLogger(logger))),
			)
			batch, err := builder.Build(customerTable, invoiceTable)
			if err != nil {
				logger.Error("payment batch rejected")
				return err
			}

			if err := a.writeTable(output, batch); err != nil {
				return err
			}
			logger.Info("wrote payment batch", "output", output, "payments", batch.Len())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&invoices, "invoices", "", `invoice file, "-" reads CSV from stdin`)
	flags.StringVar(&customers, "customers", "", `GoCardless customer export, "-" reads CSV from stdin`)
	flags.StringVarP(&output, "output", "o", stdio, `output file, "-" writes CSV to stdout`)
	flags.StringVar(&dash, "dash-policy", "", `how rows tagged "-" are read: skip or terminate`)
	flags.StringVar(&override.IDPrefix, "invoice-id-prefix", "", "prefix of the generated invoice ids")
	flags.StringVar(&override.CustomerIDField, "customer-id-field", "", "invoice column holding the customer id")
	flags.StringVar(&override.TotalAmountField, "total-amount-field", "", "invoice column holding the total")
	flags.StringVar(&override.PaymentMethodField, "payment-method-field", "", "invoice column holding the payment method")
	flags.StringVar(&override.PaymentMethodValue, "payment-method-value", "", "payment method of the invoices to keep")
	flags.StringVar(&override.EmailField, "email-field", "", "invoice column holding the customer email")
	flags.StringVar(&override.InvoiceDate, "invoice-date", "", "invoice date as YYYY-MM-DD, today when empty")
	_ = cmd.MarkFlagRequired("invoices")
	_ = cmd.MarkFlagRequired("customers")
	return cmd
}
