package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mern-testing/server/internal/server/handlers"
	"github.com/spf13/cobra"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check a running server",
	Long:  `Queries the readiness and version endpoints of a running server. Exits non-zero when the server is not ready.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL := statusURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		status, err := fetchStatus(ctx, http.DefaultClient, baseURL)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (instance %s): %s\n",
			status.Version.Service, status.Version.Version, status.Version.InstanceID, status.Readiness)

		if !status.Ready {
			return fmt.Errorf("server at %s is not ready", baseURL)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "base URL of the server (default http://localhost:$PORT)")
}

// serverStatus is what status reports about a running server
type serverStatus struct {
	Ready     bool
	Readiness string
	Version   handlers.VersionResponse
}

func fetchStatus(ctx context.Context, client *http.Client, baseURL string) (serverStatus, error) {
	var status serverStatus
	baseURL = strings.TrimRight(baseURL, "/")

	resp, err := get(ctx, client, baseURL+"/health/ready")
	if err != nil {
		return status, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return status, fmt.Errorf("failed to read readiness response: %w", err)
	}
	status.Ready = resp.StatusCode == http.StatusOK

	var readiness struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &readiness); err != nil {
		return status, fmt.Errorf("unexpected readiness response (HTTP %d): %w", resp.StatusCode, err)
	}
	status.Readiness = readiness.Status
	if readiness.Reason != "" {
		status.Readiness += " (" + readiness.Reason + ")"
	}

	resp, err = get(ctx, client, baseURL+"/version")
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("version endpoint returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status.Version); err != nil {
		return status, fmt.Errorf("failed to decode version response: %w", err)
	}

	return status, nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", url, err)
	}
	return resp, nil
}
