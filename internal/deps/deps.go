package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"songlens/internal/config"
	"songlens/internal/inference"
)

// Requirement defines an external dependency songlens relies on. Command is
// resolved on PATH; Path must name an existing regular file.
type Requirement struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Target      string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// FromConfig lists the decoder binary, the ONNX runtime library when one is
// configured, and one model file per configured classifier.
func FromConfig(cfg *config.Config) []Requirement {
	ffmpeg := strings.TrimSpace(cfg.Decoder.FFmpegBinary)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	reqs := []Requirement{{
		Name:        "ffmpeg",
		Command:     ffmpeg,
		Description: "decodes audio files",
	}}
	if lib := strings.TrimSpace(cfg.Inference.ONNXLibraryPath); lib != "" {
		reqs = append(reqs, Requirement{
			Name:        "onnxruntime",
			Path:        lib,
			Description: "runs classifier models",
		})
	}
	for _, model := range cfg.ModelNames() {
		reqs = append(reqs, Requirement{
			Name:        model,
			Path:        filepath.Join(cfg.Paths.ModelsDir, inference.ModelFileName(model)),
			Description: "classifier model",
		})
	}
	return reqs
}

// Check evaluates the provided requirements and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		cmd := strings.TrimSpace(req.Command)
		path := strings.TrimSpace(req.Path)
		switch {
		case cmd != "":
			status.Target = cmd
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Detail = resolved
			}
		case path != "":
			status.Target = path
			info, err := os.Stat(path)
			switch {
			case err != nil:
				status.Detail = "file not found"
			case info.IsDir():
				status.Detail = "path is a directory"
			default:
				status.Available = true
			}
		default:
			status.Detail = "not configured"
		}
		results = append(results, status)
	}
	return results
}

// Missing counts required dependencies that are unavailable.
func Missing(statuses []Status) int {
	n := 0
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			n++
		}
	}
	return n
}
