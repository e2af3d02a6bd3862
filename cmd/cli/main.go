package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

type options struct {
	baseURL  string
	timeout  time.Duration
	currency string
	json     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "cashflow-cli",
		Short:         "Cashflow CLI tool",
		Long:          `A command line interface for interacting with the cashflow consolidation API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the cashflow API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.currency, "currency", "USD", "Currency used to display amounts")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(ledgerCmd(opts), reportCmd(opts))
	return rootCmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	var date string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a ledger and, with --date, its entries of that day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts)
			var ledger dto.LedgerResponse
			if err := c.get(cmd.Context(), "/api/v1/ledgers/"+url.PathEscape(args[0]), nil, &ledger); err != nil {
				return err
			}

			var entries []*dto.EntryResponse
			if date != "" {
				if _, err := domain.ParseDay(date); err != nil {
					return err
				}
				q := url.Values{"date": {date}}
				if err := c.get(cmd.Context(), "/api/v1/ledgers/"+url.PathEscape(args[0])+"/entries", q, &entries); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, map[string]any{"ledger": ledger, "entries": entries})
			}
			printLedger(out, &ledger, opts.currency)
			if date != "" {
				fmt.Fprintf(out, "\nEntries on %s:\n", date)
				printEntries(out, entries, opts.currency)
			}
			return nil
		},
	}
	show.Flags().StringVar(&date, "date", "", "Day whose entries to list (YYYY-MM-DD)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List ledgers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListLedgersResponse
			if err := newClient(opts).get(cmd.Context(), "/api/v1/ledgers", nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, resp)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBALANCE\tENTRIES")
			for _, l := range resp.Ledgers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", l.ID, truncate(l.Name, 32), l.Balance.Display(opts.currency), l.EntryCount)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}

func reportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report operations",
	}

	var dailyDate string
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Show the consolidated report of one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r dto.ReportResponse
			q := url.Values{"date": {dailyDate}}
			if err := newClient(opts).get(cmd.Context(), "/api/v1/reports/daily", q, &r); err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), &r, opts)
		},
	}
	daily.Flags().StringVar(&dailyDate, "date", today(), "Day to report (YYYY-MM-DD)")

	var start, end string
	period := &cobra.Command{
		Use:   "period",
		Short: "Show the consolidated report of a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r dto.ReportResponse
			q := url.Values{"start": {start}, "end": {end}}
			if err := newClient(opts).get(cmd.Context(), "/api/v1/reports/period", q, &r); err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), &r, opts)
		},
	}
	period.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	period.Flags().StringVar(&end, "end", "", "Last day (YYYY-MM-DD)")
	_ = period.MarkFlagRequired("start")
	_ = period.MarkFlagRequired("end")

	var consolidateDate string
	consolidate := &cobra.Command{
		Use:   "consolidate",
		Short: "Run the daily consolidation of a day now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res dto.ConsolidationResponse
			body := dto.ConsolidateRequest{Date: consolidateDate}
			if err := newClient(opts).post(cmd.Context(), "/api/v1/reports/consolidate", body, &res); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "Consolidated %s: %d reports, %d new\n", res.Date, len(res.Reports), res.Inserted)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCOPE\tCREDITS\tDEBITS\tBALANCE")
			for _, r := range res.Reports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Scope,
					r.TotalCredits.Display(opts.currency),
					r.TotalDebits.Display(opts.currency),
					r.FinalBalance.Display(opts.currency))
			}
			return tw.Flush()
		},
	}
	consolidate.Flags().StringVar(&consolidateDate, "date", today(), "Day to consolidate (YYYY-MM-DD)")

	var reconcileDate string
	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the stored report of a day with the ledgers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res usecase.ReconciliationResult
			q := url.Values{"date": {reconcileDate}}
			if err := newClient(opts).get(cmd.Context(), "/api/v1/reports/reconcile", q, &res); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}
			status := "RECONCILED"
			if !res.IsReconciled {
				status = "MISMATCH"
			}
			fmt.Fprintf(out, "%s %s\n", reconcileDate, status)
			fmt.Fprintf(out, "Stored:     %s\n", res.StoredBalance.Display(opts.currency))
			fmt.Fprintf(out, "Current:    %s\n", res.CurrentBalance.Display(opts.currency))
			fmt.Fprintf(out, "Difference: %s\n", res.Difference.Display(opts.currency))
			for _, e := range res.BalanceErrors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			if !res.IsReconciled {
				return fmt.Errorf("reconciliation failed for %s", reconcileDate)
			}
			return nil
		},
	}
	reconcile.Flags().StringVar(&reconcileDate, "date", today(), "Day to reconcile (YYYY-MM-DD)")

	cmd.AddCommand(daily, period, consolidate, reconcile)
	return cmd
}

func today() string {
	return domain.Day(time.Now()).Format(domain.DateLayout)
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(opts *options) *client {
	return &client{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		http:    &http.Client{Timeout: opts.timeout},
	}
}

func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s (status %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
			}
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func printLedger(out io.Writer, l *dto.LedgerResponse, currency string) {
	fmt.Fprintf(out, "Ledger:  %s (%s)\n", l.Name, l.ID)
	fmt.Fprintf(out, "Opened:  %s\n", l.OpenedDate)
	fmt.Fprintf(out, "Balance: %s\n", l.Balance.Display(currency))
	fmt.Fprintf(out, "Entries: %d\n", l.EntryCount)
}

func printEntries(out io.Writer, entries []*dto.EntryResponse, currency string) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tAMOUNT\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.UTC().Format(time.TimeOnly), e.Kind, e.Amount.Display(currency), truncate(e.Description, 40))
	}
	tw.Flush()
}

func printReport(out io.Writer, r *dto.ReportResponse, opts *options) error {
	if opts.json {
		return printJSON(out, r)
	}
	span := r.StartDate
	if r.EndDate != r.StartDate {
		span += " .. " + r.EndDate
	}
	fmt.Fprintf(out, "Report %s [%s]\n", span, r.Scope)
	fmt.Fprintf(out, "Credits: %s\n", r.TotalCredits.Display(opts.currency))
	fmt.Fprintf(out, "Debits:  %s\n", r.TotalDebits.Display(opts.currency))
	fmt.Fprintf(out, "Balance: %s\n", r.FinalBalance.Display(opts.currency))
	fmt.Fprintf(out, "Entries: %d\n", len(r.Entries))
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
