// ogictl is a small CLI client for the ogi HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/ogi"
	"github.com/ashita-ai/ogi/internal/model"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "ogictl",
	Short: "Control a running ogi server",
	Long: `ogictl submits fan-out batches to a running ogi server and collects
their results.

Examples:
  # Submit a batch from a fragments file
  ogictl submit -t "Summarize: {fragment}" -f fragments.json

  # Check progress
  ogictl status batch-4f1c...

  # Wait for results (60% quorum, 30s budget)
  ogictl collect batch-4f1c... --quorum 0.6 --timeout 30s`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the ogi server")
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(healthCmd)
}

var (
	submitTemplate  string
	submitFile      string
	submitModel     string
	submitMaxTokens int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new batch of sub-queries",
	Long: `Submit a batch. Fragments are read as a JSON array of
{"id": "...", "content": "..."} objects from --file, or from stdin when
--file is "-".`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitTemplate, "template", "t", "", "Prompt template with a {fragment} placeholder")
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "-", `Fragments JSON file ("-" for stdin)`)
	submitCmd.Flags().StringVarP(&submitModel, "model", "m", "", "Model override for every sub-query")
	submitCmd.Flags().IntVar(&submitMaxTokens, "max-tokens", 0, "Output token cap per sub-query")
	_ = submitCmd.MarkFlagRequired("template")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	var reader io.Reader
	if submitFile == "-" {
		reader = cmd.InOrStdin()
	} else {
		f, err := os.Open(submitFile)
		if err != nil {
			return err
		}
		defer f.Close()
		reader = f
	}

	var fragments []ogi.Fragment
	if err := json.NewDecoder(reader).Decode(&fragments); err != nil {
		return fmt.Errorf("parse fragments: %w", err)
	}

	var resp model.CreateBatchResponse
	err := postJSON("/v1/batches", model.CreateBatchRequest{
		Template:  submitTemplate,
		Fragments: fragments,
		Model:     submitModel,
		MaxTokens: submitMaxTokens,
	}, &resp)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.BatchID)
	fmt.Fprintf(cmd.ErrOrStderr(), "submitted %d sub-queries\n", len(resp.QueryIDs))
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Show the progress of a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp model.BatchStatusResponse
		if err := getJSON("/v1/batches/"+args[0], &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "batch %s (%s): %d/%d complete, %d succeeded\n",
			resp.BatchID, resp.Venue, resp.Completed, resp.Total, resp.Succeeded)
		for id, st := range resp.Statuses {
			line := fmt.Sprintf("  %-12s %s", id, st.Kind)
			if st.ErrorMessage != "" {
				line += "  " + st.ErrorMessage
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var (
	collectTimeout    time.Duration
	collectPerQuery   time.Duration
	collectQuorum     float64
	collectBestEffort bool
)

var collectCmd = &cobra.Command{
	Use:   "collect <batch-id>",
	Short: "Wait for a batch's results and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollect,
}

func init() {
	collectCmd.Flags().DurationVar(&collectTimeout, "timeout", 0, "Total collection budget (0 = server default)")
	collectCmd.Flags().DurationVar(&collectPerQuery, "per-query", 0, "Polling granularity (0 = server default)")
	collectCmd.Flags().Float64Var(&collectQuorum, "quorum", -1, "Fraction of sub-queries that must succeed (unset = server default)")
	collectCmd.Flags().BoolVar(&collectBestEffort, "best-effort", false, "Gather whatever arrives, ignore quorum")
}

func runCollect(cmd *cobra.Command, args []string) error {
	req := model.CollectRequest{
		TimeoutMS:  collectTimeout.Milliseconds(),
		PerQueryMS: collectPerQuery.Milliseconds(),
		BestEffort: collectBestEffort,
	}
	if collectQuorum >= 0 {
		req.QuorumFraction = &collectQuorum
	}

	var resp model.CollectResponse
	if err := postJSON("/v1/batches/"+args[0]+"/collect", req, &resp); err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !resp.QuorumMet {
		return fmt.Errorf("quorum not met (%d results, %d timed out)", len(resp.Results), len(resp.TimedOut))
	}
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the server's health endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Status  string `json:"status"`
			Version string `json:"version"`
			Venue   string `json:"venue"`
		}
		if err := getJSON("/health", &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s, venue %s)\n", resp.Status, resp.Version, resp.Venue)
		return nil
	},
}

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func postJSON(path string, body, target any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	resp, err := httpClient.Post(serverURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, target)
}

func getJSON(path string, target any) error {
	resp, err := httpClient.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, target)
}

// decodeEnvelope unwraps the server's response envelope, turning error
// envelopes into Go errors.
func decodeEnvelope(resp *http.Response, target any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr model.APIError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, target)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
