package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var statusServerURL string

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Query server status or a specific session",
	Long: `Queries a running heatwave server for session status.
If no session-id is provided, lists all sessions.
If session-id is provided, shows detailed status for that session.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServerURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listSessions(fmt.Sprintf("%s/api/v1/sessions", statusServerURL))
	}
	sessionID := args[0]
	return getSessionStatus(fmt.Sprintf("%s/api/v1/sessions/%s/status", statusServerURL, sessionID), sessionID)
}

func listSessions(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var sessions []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("Found %d session(s):\n\n", len(sessions))
	for _, s := range sessions {
		fmt.Printf("Session ID: %s\n", s["id"])
		fmt.Printf("  Dimensions: %vx%v\n", s["width"], s["height"])
		fmt.Printf("  Created: %s\n", s["createdAt"])
		fmt.Println()
	}

	return nil
}

func getSessionStatus(url, sessionID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Session: %s\n", status["id"])
	fmt.Printf("Dimensions: %vx%v\n", status["width"], status["height"])
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Busy: %v\n", status["busy"])
	fmt.Printf("  Pass index: %v\n", status["passIndex"])
	if d, ok := status["lastDurationSeconds"].(float64); ok && d > 0 {
		fmt.Printf("  Last solve duration: %.4fs\n", d)
	}

	return nil
}
