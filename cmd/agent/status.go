package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd queries a running agent's local API and pretty-prints the
// status document.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of a running agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("api.bind_host")
		port, _ := cmd.Flags().GetInt("api.port")

		url := fmt.Sprintf("http://%s/status", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("agent not reachable at %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status request failed: %s", resp.Status)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read status response: %w", err)
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err != nil {
			cmd.Println(string(body))
			return nil
		}
		cmd.Println(pretty.String())
		return nil
	},
}
