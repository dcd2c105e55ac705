// geoharvest is the operator CLI for AppEEARS jobs. Each subcommand runs
// one tool directly against AppEEARS, without the tool server, and prints
// the resulting {status, message, data} envelope as JSON.
//
// Credentials come from the same environment as the server:
// APPEEARS_USERNAME, APPEEARS_PASSWORD, APPEEARS_API_URL and DOWNLOAD_PATH.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kiranshivaraju/geoharvest/internal/appeears"
	"github.com/kiranshivaraju/geoharvest/internal/catalog"
	"github.com/kiranshivaraju/geoharvest/internal/config"
	"github.com/kiranshivaraju/geoharvest/internal/jobs"
	"github.com/kiranshivaraju/geoharvest/internal/tools"
)

// errToolFailed is returned when the tool ran but reported status "error".
// The envelope has already been printed.
var errToolFailed = errors.New("tool reported an error")

const usage = `Usage: geoharvest <command> [flags] [args]

Commands:
  submit -f FILE          submit a job described by a YAML file
  status JOB_ID           show the normalized job status
  details JOB_ID          show the full task record
  progress JOB_ID         show status with elapsed time
  jobs [--limit N] [--offset N]
                          list jobs on the account
  files JOB_ID            list the files of a completed job
  download JOB_ID [--out DIR]
                          download every file of a completed job
  cancel JOB_ID           cancel a pending or running job
  products                list AppEEARS products
  layers PRODUCT          list the layers of a product (e.g. MOD13Q1.061)
`

// registryFunc builds the tool registry on first use so that usage errors
// never need credentials.
type registryFunc func(ctx context.Context) (*tools.Registry, error)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, newRegistry)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, pflag.ErrHelp):
		fmt.Fprint(os.Stderr, usage)
	case errors.Is(err, errToolFailed):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, out io.Writer, registry registryFunc) error {
	if len(args) == 0 {
		return pflag.ErrHelp
	}

	tool, toolArgs, err := parseCommand(args[0], args[1:])
	if err != nil {
		return err
	}

	reg, err := registry(ctx)
	if err != nil {
		return err
	}

	res, err := reg.Invoke(ctx, tool, toolArgs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if !res.OK() {
		return errToolFailed
	}
	return nil
}

// parseCommand maps a subcommand and its flags to a tool name and JSON arguments.
func parseCommand(name string, args []string) (string, json.RawMessage, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		file   string
		outDir string
		limit  int
		offset int
	)
	switch name {
	case "submit":
		fs.StringVarP(&file, "file", "f", "", "YAML job description")
	case "download":
		fs.StringVar(&outDir, "out", "", "output root (default DOWNLOAD_PATH)")
	case "jobs":
		fs.IntVar(&limit, "limit", 0, "maximum jobs to return")
		fs.IntVar(&offset, "offset", 0, "jobs to skip")
	case "status", "details", "progress", "files", "cancel", "products", "layers":
	case "help", "-h", "--help":
		return "", nil, pflag.ErrHelp
	default:
		return "", nil, fmt.Errorf("unknown command %q (see geoharvest help)", name)
	}
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	pos := fs.Args()

	switch name {
	case "submit":
		if file == "" {
			return "", nil, errors.New("submit: -f FILE is required")
		}
		if len(pos) != 0 {
			return "", nil, fmt.Errorf("submit: unexpected argument %q", pos[0])
		}
		raw, err := submitArgs(file)
		return "submit_appears_job", raw, err

	case "status", "details", "progress", "files", "cancel":
		id, err := single(name, "JOB_ID", pos)
		if err != nil {
			return "", nil, err
		}
		return jobCommands[name], encode(map[string]any{"job_id": id}), nil

	case "download":
		id, err := single(name, "JOB_ID", pos)
		if err != nil {
			return "", nil, err
		}
		a := map[string]any{"job_id": id}
		if outDir != "" {
			a["output_path"] = outDir
		}
		return "download_job_results", encode(a), nil

	case "jobs":
		if len(pos) != 0 {
			return "", nil, fmt.Errorf("jobs: unexpected argument %q", pos[0])
		}
		a := map[string]any{}
		if fs.Changed("limit") {
			a["limit"] = limit
		}
		if fs.Changed("offset") {
			a["offset"] = offset
		}
		return "list_appears_jobs", encode(a), nil

	case "products":
		if len(pos) != 0 {
			return "", nil, fmt.Errorf("products: unexpected argument %q", pos[0])
		}
		return "list_appears_products", nil, nil

	case "layers":
		product, err := single(name, "PRODUCT", pos)
		if err != nil {
			return "", nil, err
		}
		return "get_appears_layers", encode(map[string]any{"product": product}), nil
	}
	return "", nil, fmt.Errorf("unknown command %q", name)
}

var jobCommands = map[string]string{
	"status":   "check_job_status",
	"details":  "get_job_details",
	"progress": "get_job_progress",
	"files":    "list_bundle_files",
	"cancel":   "cancel_appears_job",
}

func single(cmd, what string, pos []string) (string, error) {
	if len(pos) != 1 || pos[0] == "" {
		return "", fmt.Errorf("%s: expected exactly one %s", cmd, what)
	}
	return pos[0], nil
}

// submitArgs reads a YAML job description and re-encodes it as tool arguments.
func submitArgs(path string) (json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}
	var req jobs.SubmitRequest
	if err := yaml.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	return encode(req), nil
}

func encode(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func newRegistry(ctx context.Context) (*tools.Registry, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	httpClient := appeears.NewHTTPClient(cfg.AppEEARS.Timeout)
	lease := appeears.NewLease(cfg.AppEEARS.BaseURL, cfg.AppEEARS.Username, cfg.AppEEARS.Password, httpClient)
	if err := lease.EnsureValid(ctx); err != nil {
		return nil, fmt.Errorf("appeears login: %w", err)
	}
	gw := appeears.NewGateway(cfg.AppEEARS.BaseURL, lease, httpClient)
	tracker := jobs.NewTracker(gw)

	reg := tools.NewRegistry(nil)
	err = tools.RegisterAll(reg, tools.Services{
		Submitter:  jobs.NewSubmitter(gw),
		Tracker:    tracker,
		Bundles:    jobs.NewResolver(gw, tracker),
		Downloader: jobs.NewDownloader(gw, tracker, cfg.Download.Path),
		Canceller:  jobs.NewCanceller(gw, tracker),
		Catalog:    catalog.NewService(gw, nil, 0),
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}
