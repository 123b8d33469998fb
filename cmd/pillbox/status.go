package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/pillbox/internal/admin"
	"github.com/goodtune/pillbox/internal/config"
	"github.com/goodtune/pillbox/internal/engine"
	"github.com/spf13/cobra"
)

var (
	statusAddr    string
	statusToken   string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running dispenser's state",
	Long:  `Query a running Pillbox server over its admin API and print the clock, schedule and session state.`,
	Example: `  pillbox status
  pillbox status --addr http://pillbox.local:8080 --token s3cret`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Admin API base URL (defaults to the configured admin listener)")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "Admin API bearer token (defaults to admin.token)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "Request timeout")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, token := statusAddr, statusToken
	if addr == "" || token == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			cfg = config.Defaults()
		}
		if addr == "" {
			addr = fmt.Sprintf("http://%s:%d", cfg.Admin.BindAddress, cfg.Admin.Port)
		}
		if token == "" {
			token = cfg.Admin.Token
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	var st engine.Status
	if err := fetchJSON(ctx, strings.TrimRight(addr, "/")+"/api/status", token, &st); err != nil {
		return err
	}

	var slots struct {
		Slots []admin.SlotView `json:"slots"`
	}
	if err := fetchJSON(ctx, strings.TrimRight(addr, "/")+"/api/slots", token, &slots); err != nil {
		return err
	}

	var modules struct {
		Modules []admin.ModuleView `json:"modules"`
	}
	if err := fetchJSON(ctx, strings.TrimRight(addr, "/")+"/api/modules", token, &modules); err != nil {
		return err
	}

	printStatus(st, slots.Slots, modules.Modules)
	return nil
}

func fetchJSON(ctx context.Context, url, token string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach pillbox: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr admin.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Message)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid response from %s: %w", url, err)
	}
	return nil
}

func printStatus(st engine.Status, slots []admin.SlotView, modules []admin.ModuleView) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	_, _ = cyan.Println("\nPillbox Status")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Time:      %s %s\n", st.Date, st.Time)
	if st.ReliableClock {
		_, _ = green.Println("Clock:     reliable")
	} else {
		_, _ = yellow.Println("Clock:     uptime fallback (slot times follow uptime, not wall time)")
	}
	if st.MasterEnabled {
		_, _ = green.Println("Schedule:  enabled")
	} else {
		_, _ = red.Println("Schedule:  disabled")
	}
	if st.ActuatorAvailable {
		_, _ = green.Println("Actuator:  ready")
	} else {
		_, _ = red.Println("Actuator:  not found")
	}

	if st.Session != nil {
		_, _ = yellow.Printf("Session:   waiting for confirmation of slot %d (%ds left)\n",
			st.Session.Slot, st.RemainingSeconds)
	} else {
		fmt.Printf("Session:   %s\n", st.State)
	}
	if st.NextSlot != nil {
		fmt.Printf("Next dose: %s at %s (in %d min)\n", st.NextSlot.Label, st.NextSlot.Time, st.NextSlot.Minutes)
	} else {
		_, _ = dim.Println("Next dose: none scheduled")
	}

	_, _ = cyan.Println("\nSlots")
	for _, s := range slots {
		line := fmt.Sprintf("  %d  %s  %-22s", s.Index, s.Time, s.Label)
		switch {
		case !s.Enabled:
			_, _ = dim.Println(line + "  disabled")
		case s.Index < len(st.Fired) && st.Fired[s.Index]:
			_, _ = green.Println(line + "  done today")
		default:
			fmt.Println(line)
		}
	}

	_, _ = cyan.Println("\nModules")
	for _, m := range modules {
		line := fmt.Sprintf("  %d  %-15s  qty %2d  slots %v", m.Index, m.Name, m.Quantity, m.Slots)
		switch {
		case m.Index < len(st.ManualActive) && st.ManualActive[m.Index]:
			_, _ = yellow.Println(line + "  held open")
		case m.Quantity == 0 && len(m.Slots) > 0:
			_, _ = red.Println(line + "  empty")
		default:
			fmt.Println(line)
		}
	}
	fmt.Fprintln(os.Stdout)
}
