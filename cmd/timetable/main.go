package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

type options struct {
	DataDir       string
	OutDir        string
	Seed          int64
	View          string
	Target        string
	Formats       []string
	Deterministic bool
	Policy        string
	IssueToken    string
	Manifest      bool
}

// summary is what one CLI run produced.
type summary struct {
	Run   models.TimetableRun
	Files []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.NewCLI(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	opts, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		logr.Fatal("invalid flags", zap.Error(err))
	}

	if opts.IssueToken != "" {
		auth := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, AccessTokenExpiry: cfg.JWT.Expiration})
		token, expires, err := auth.IssueToken("", models.UserRole(strings.ToUpper(opts.IssueToken)), "", "cli")
		if err != nil {
			logr.Fatal("failed to issue token", zap.Error(err))
		}
		logr.Info("token issued", zap.Time("expires_at", expires))
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := run(ctx, opts, logr)
	if err != nil {
		logr.Fatal("timetable run failed", zap.Error(err))
	}
	logr.Info("done", zap.String("run_id", out.Run.ID), zap.Strings("files", out.Files))
}

func parseFlags(args []string, cfg *config.Config) (options, error) {
	var (
		opts    options
		formats string
	)
	fs := flag.NewFlagSet("timetable", flag.ContinueOnError)
	fs.StringVar(&opts.DataDir, "data", cfg.Scheduler.DataDir, "directory holding the catalog CSV files")
	fs.StringVar(&opts.OutDir, "out", cfg.Exports.StorageDir, "directory receiving exports")
	fs.Int64Var(&opts.Seed, "seed", cfg.Scheduler.Seed, "shuffle seed, 0 draws one from the clock")
	fs.StringVar(&opts.View, "view", string(models.ViewGroup), "grid view: group, teacher or room")
	fs.StringVar(&opts.Target, "target", "", "grid target id; empty renders every target of the view")
	fs.StringVar(&formats, "formats", "csv,xlsx", "comma separated export formats (csv, xlsx, pdf)")
	fs.BoolVar(&opts.Deterministic, "deterministic", false, "walk slots in catalog order instead of shuffling")
	fs.StringVar(&opts.Policy, "policy", cfg.Scheduler.TeachingPolicy, "duplicate teaching policy: strict or first")
	fs.StringVar(&opts.IssueToken, "issue-token", "", "print an access token for ROLE and exit")
	fs.BoolVar(&opts.Manifest, "manifest", true, "write a YAML manifest of the run next to the exports")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch models.TimetableView(opts.View) {
	case models.ViewGroup, models.ViewTeacher, models.ViewRoom:
	default:
		return options{}, fmt.Errorf("unknown view %q", opts.View)
	}
	for _, f := range strings.Split(formats, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case "":
			continue
		case service.FormatCSV, service.FormatXLSX, service.FormatPDF:
			opts.Formats = append(opts.Formats, f)
		default:
			return options{}, fmt.Errorf("unknown format %q", f)
		}
	}
	return opts, nil
}

func run(ctx context.Context, opts options, logr *zap.Logger) (*summary, error) {
	store, err := storage.NewLocalStorage(opts.OutDir)
	if err != nil {
		return nil, err
	}

	svc := service.NewTimetableService(repository.NewCSVCatalogRepository(opts.DataDir), nil, nil, nil, nil, logr, service.TimetableServiceConfig{
		Enabled:        true,
		Source:         config.SourceCSV,
		Seed:           opts.Seed,
		TeachingPolicy: scheduler.ParseTeachingPolicy(opts.Policy),
	})
	seed := opts.Seed
	resp, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: &seed, Deterministic: opts.Deterministic})
	if err != nil {
		return nil, err
	}
	report(logr, resp)

	result, err := svc.CompletedResult(ctx, resp.Run.ID)
	if err != nil {
		return nil, err
	}
	targets := []string{opts.Target}
	if opts.Target == "" {
		targets = service.ViewTargets(result.Names, models.TimetableView(opts.View))
	}

	exports := service.NewExportService(svc, store, logr)
	out := &summary{Run: resp.Run}
	for _, format := range opts.Formats {
		// CSV always carries every row; grids are written per target.
		if format == service.FormatCSV {
			name, err := exports.Save(ctx, resp.Run.ID, dto.ExportQuery{Format: format})
			if err != nil {
				return nil, err
			}
			out.Files = append(out.Files, store.Path(name))
			continue
		}
		for _, target := range targets {
			name, err := exports.Save(ctx, resp.Run.ID, dto.ExportQuery{Format: format, View: opts.View, Target: target})
			if err != nil {
				return nil, fmt.Errorf("export %s %s: %w", format, target, err)
			}
			out.Files = append(out.Files, store.Path(name))
		}
	}
	if len(out.Files) == 0 {
		return out, errors.New("no export formats selected")
	}
	if opts.Manifest {
		name, err := writeManifest(store, resp, out.Files)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, store.Path(name))
	}
	return out, nil
}

func report(logr *zap.Logger, resp *dto.TimetableRunResponse) {
	logr.Info("timetable generated",
		zap.Int64("seed", resp.Run.Seed),
		zap.String("fingerprint", resp.Run.Fingerprint),
		zap.Int("assignments", resp.Run.Assignments))
	for _, o := range resp.Failures {
		logr.Warn("registration skipped",
			zap.Int("index", o.Index),
			zap.String("group_id", o.GroupID),
			zap.String("subject_id", o.SubjectID),
			zap.String("reason", o.Error))
	}
	for _, o := range resp.Shortfalls {
		logr.Warn("registration under-placed",
			zap.String("group_id", o.GroupID),
			zap.String("subject_id", o.SubjectID),
			zap.String("teacher_id", o.TeacherID),
			zap.Int("required", o.Required),
			zap.Int("placed", o.Placed))
	}
}

// runManifest records what a CLI run produced so it can be reproduced later.
type runManifest struct {
	RunID       string            `yaml:"run_id"`
	Seed        int64             `yaml:"seed"`
	Fingerprint string            `yaml:"fingerprint"`
	Assignments int               `yaml:"assignments"`
	Files       []string          `yaml:"files"`
	Shortfalls  []manifestOutcome `yaml:"shortfalls,omitempty"`
	Failures    []manifestOutcome `yaml:"failures,omitempty"`
}

type manifestOutcome struct {
	GroupID   string `yaml:"group_id"`
	SubjectID string `yaml:"subject_id"`
	Required  int    `yaml:"required,omitempty"`
	Placed    int    `yaml:"placed,omitempty"`
	Code      string `yaml:"code,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

func writeManifest(store *storage.LocalStorage, resp *dto.TimetableRunResponse, files []string) (string, error) {
	manifest := runManifest{
		RunID:       resp.Run.ID,
		Seed:        resp.Run.Seed,
		Fingerprint: resp.Run.Fingerprint,
		Assignments: resp.Run.Assignments,
	}
	for _, f := range files {
		manifest.Files = append(manifest.Files, filepath.Base(f))
	}
	for _, o := range resp.Shortfalls {
		manifest.Shortfalls = append(manifest.Shortfalls, manifestOutcome{GroupID: o.GroupID, SubjectID: o.SubjectID, Required: o.Required, Placed: o.Placed})
	}
	for _, o := range resp.Failures {
		manifest.Failures = append(manifest.Failures, manifestOutcome{GroupID: o.GroupID, SubjectID: o.SubjectID, Code: o.Code, Reason: o.Error})
	}

	body, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	short := resp.Run.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return store.Save(fmt.Sprintf("timetable_%s_manifest.yaml", short), body)
}
