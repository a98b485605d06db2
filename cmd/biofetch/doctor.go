package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/doctor"
)

func runDoctorCommand(ctx context.Context, args []string) int {
	var asJSON bool
	for _, arg := range args {
		if arg == "-json" || arg == "--json" {
			asJSON = true
		}
	}

	cfg, err := config.Load()
	if err != nil && !cfg.NeedsInit {
		// Diagnosing a broken setup is the point, so keep going.
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
	}

	diag := doctor.Run(ctx, &cfg, Version)
	if asJSON {
		return emitDoctorJSON(diag)
	}
	return emitDoctorReport(diag)
}

func emitDoctorJSON(diag doctor.Diagnosis) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(diag); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding json: %v\n", err)
		return 1
	}
	return 0
}

func emitDoctorReport(diag doctor.Diagnosis) int {
	fmt.Printf("biofetch Doctor Report (%s)\n", diag.Timestamp.Format(time.RFC3339))
	fmt.Printf("System: %s/%s (%s)\n", diag.System.OS, diag.System.Arch, diag.System.Go)
	fmt.Println("---")

	failed := 0
	for _, res := range diag.Results {
		if res.Status == doctor.StatusFail {
			failed++
		}
		fmt.Printf("%s %-15s: %s\n", statusIcon(res.Status), res.Name, res.Message)
		if res.Detail != "" {
			fmt.Printf("    %s\n", res.Detail)
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func statusIcon(status string) string {
	switch status {
	case doctor.StatusFail:
		return "❌"
	case doctor.StatusWarn:
		return "⚠️ "
	case doctor.StatusSkip:
		return "⏩"
	default:
		return "✅"
	}
}
