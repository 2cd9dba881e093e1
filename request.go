package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/session"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated request and print the response data",
		Long: `Send a request to the backend through the authenticated pipeline.

The bearer token is attached automatically. An expired access token is
refreshed once and the request replayed. The "data" field of the response
envelope is printed as JSON.

Use --data to send a JSON body; "--data -" reads the body from stdin.`,
		Example: `  mpayctl request GET /api/orders
  mpayctl request POST /api/orders --data '{"amount": 100}'`,
		Args: cobra.ExactArgs(2),
		RunE: runRequest,
	}

	cmd.Flags().StringP("data", "d", "", "JSON request body, or - to read stdin")

	return cmd
}

func runRequest(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	method := strings.ToUpper(args[0])
	if !allowedMethods[method] {
		return fmt.Errorf("unsupported method %q", args[0])
	}

	path := args[1]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	body, err := requestBody(cmd)
	if err != nil {
		return err
	}

	cs, err := NewConsoleSession(ctx, cc)
	if err != nil {
		return err
	}
	defer cs.Close()

	req := session.NewRequest(method, path, body)

	resp, err := cs.Ctrl.Pipeline().Send(ctx, req)
	if err != nil {
		return err
	}

	var data json.RawMessage
	if err := api.Decode(resp, &data); err != nil {
		return err
	}

	cc.Logger.Debug("request complete",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("retry", req.RetryState().String()),
	)

	return printRawJSON(cc.Out, data)
}

// requestBody returns the --data payload, validated as JSON.
func requestBody(cmd *cobra.Command) ([]byte, error) {
	data, err := cmd.Flags().GetString("data")
	if err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("data") {
		return nil, nil
	}

	body := []byte(data)

	if data == "-" {
		if body, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}

	return body, nil
}

// printRawJSON indents raw JSON. Empty data prints "null".
func printRawJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}

	buf.WriteByte('\n')

	_, err := buf.WriteTo(w)

	return err
}
