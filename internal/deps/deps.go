// Package deps verifies the external tools reelvault shells out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"reelvault/internal/config"
)

// Requirement defines an external dependency the conversion pipeline needs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the binaries and devices the configured pipeline uses.
func ForConfig(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "ffmpeg", Command: cfg.FFmpegBinary(), Description: "video transcoding"},
		{Name: "ffprobe", Command: cfg.FFprobeBinary(), Description: "media inspection"},
	}
	if device := strings.TrimSpace(cfg.Transcode.HWDevice); device != "" {
		reqs = append(reqs, Requirement{
			Name:        "vaapi device",
			Command:     device,
			Description: "hardware encoding",
			Optional:    true,
		})
	}
	return reqs
}

// Check evaluates the provided requirements and reports availability.
// Commands are resolved through PATH; absolute paths are checked directly.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case command == "":
			status.Detail = "command not configured"
		case strings.HasPrefix(command, "/"):
			if _, err := os.Stat(command); err != nil {
				status.Detail = fmt.Sprintf("path %q not accessible", command)
			} else {
				status.Available = true
			}
		default:
			if _, err := exec.LookPath(command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired filters statuses down to unavailable hard requirements.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
