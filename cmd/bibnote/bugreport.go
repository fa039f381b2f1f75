package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bibnote/bibnote/internal/config"
	"github.com/bibnote/bibnote/internal/tracing"
	"github.com/spf13/cobra"
)

// bugreportLogs is how many of the newest run logs go into a bundle.
const bugreportLogs = 3

// reportEnv holds the process lookups bugreport depends on.
type reportEnv struct {
	now  func() time.Time
	home func() (string, error)
	cwd  func() (string, error)
	exec func(ctx context.Context, dir, name string, args ...string) (string, error)
}

var bugreportEnv = reportEnv{
	now:  func() time.Time { return time.Now().UTC() },
	home: os.UserHomeDir,
	cwd:  os.Getwd,
	exec: func(ctx context.Context, dir, name string, args ...string) (string, error) {
		result, err := tracing.Run(ctx, name, args, dir)
		return strings.TrimSpace(result.Stdout + "\n" + result.Stderr), err
	},
}

func newBugreportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bugreport",
		Short: "Collect a diagnostic bundle for debugging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.logger.Info("collecting diagnostic bundle", "command", "bugreport")
			return runBugReport(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

// bundle is the archive content, built in memory and written once.
type bundle struct {
	files    []bundleFile
	warnings []string
}

type bundleFile struct {
	name string
	data []byte
}

func (b *bundle) add(name string, data []byte) {
	b.files = append(b.files, bundleFile{name: name, data: data})
}

func (b *bundle) addText(name, text string) {
	b.add(name, []byte(text))
}

func (b *bundle) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func runBugReport(ctx context.Context, a *app, out io.Writer) error {
	env := bugreportEnv
	home, err := env.home()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	if home = filepath.Clean(strings.TrimSpace(home)); home == "." {
		return fmt.Errorf("home directory is not valid")
	}
	cwd, err := env.cwd()
	if err != nil {
		return fmt.Errorf("resolve current directory: %w", err)
	}
	now := env.now()

	b := &bundle{}
	runID, traceID := addRecentLogs(b, a.cfg.LogDir)
	if runID == "" && traceID == "" {
		b.warn("no run_id/trace_id found in copied logs")
	}
	b.addText("last-run.txt", fmt.Sprintf("run_id: %s\ntrace_id: %s\n", runID, traceID))
	b.addText("version.txt", fmt.Sprintf("bibnote version: %s\n", strings.TrimSpace(Version)))
	addConfig(b, "config-user.toml", filepath.Join(home, config.DirName, config.FileName))
	addConfig(b, "config-project.toml", filepath.Join(filepath.Clean(cwd), config.DirName, config.FileName))
	if err := addDoctorReport(ctx, b, a); err != nil {
		return err
	}
	addVaultGit(ctx, b, env, a.cfg.VaultDir)
	b.addText("README.txt", bugreportReadme(now, runID, traceID, b.warnings))

	path := filepath.Join(filepath.Clean(cwd), fmt.Sprintf(".bibnote-bugreport-%s.tar.gz", now.Format("20060102-150405")))
	if err := b.writeArchive(path, now); err != nil {
		return err
	}
	if out == nil {
		out = os.Stdout
	}
	if _, err := fmt.Fprintf(out, "Bug report written to: %s. Share for debugging.\n", path); err != nil {
		return fmt.Errorf("write bugreport output: %w", err)
	}
	return nil
}

// addRecentLogs copies the newest logs under logs/ and returns the last run and
// trace IDs they mention, newest log first.
func addRecentLogs(b *bundle, dir string) (runID, traceID string) {
	paths, err := newestFiles(dir, bugreportLogs)
	if err != nil {
		b.warn("unable to read logs directory: %v", err)
		return "", ""
	}
	for _, path := range paths {
		// #nosec G304 -- path comes from listing the configured log directory.
		data, err := os.ReadFile(path)
		if err != nil {
			b.warn("unable to read log %s: %v", path, err)
			continue
		}
		b.add("logs/"+filepath.Base(path), data)
		if runID == "" && traceID == "" {
			runID, traceID = lastCorrelation(data)
		}
	}
	return runID, traceID
}

// lastCorrelation scans JSON log lines from the end for run_id or trace_id.
func lastCorrelation(data []byte) (string, string) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		var record struct {
			RunID   string `json:"run_id"`
			TraceID string `json:"trace_id"`
		}
		if json.Unmarshal(lines[i], &record) != nil {
			continue
		}
		runID, traceID := strings.TrimSpace(record.RunID), strings.TrimSpace(record.TraceID)
		if runID != "" || traceID != "" {
			return runID, traceID
		}
	}
	return "", ""
}

func addConfig(b *bundle, name, path string) {
	// #nosec G304 -- config paths are fixed locations under home and the working directory.
	data, err := os.ReadFile(path)
	if err != nil {
		b.warn("unable to read %s: %v", path, err)
		data = []byte("# config unavailable\n")
	}
	b.addText(name, redactSensitiveConfig(string(data)))
}

// redactSensitiveConfig masks the value of every key that looks like a secret.
func redactSensitiveConfig(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed == "" || trimmed[0] == '#' || trimmed[0] == '[' {
			continue
		}
		if key, _, ok := strings.Cut(line, "="); ok && tracing.IsSensitiveKey(key) {
			lines[i] = key + `= "***REDACTED***"`
		}
	}
	return strings.Join(lines, "\n")
}

func addDoctorReport(ctx context.Context, b *bundle, a *app) error {
	report, err := a.doctorReport(ctx)
	if err != nil {
		b.warn("doctor failed: %v", err)
		b.addText("doctor.json", "{}\n")
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode doctor report: %w", err)
	}
	b.add("doctor.json", append(data, '\n'))
	return nil
}

// addVaultGit records HEAD, branch and status of the vault when it is a git
// checkout. Failures are written into the file instead.
func addVaultGit(ctx context.Context, b *bundle, env reportEnv, vault string) {
	git := func(args ...string) string {
		output, err := env.exec(ctx, vault, "git", args...)
		switch {
		case err == nil:
			return output
		case output == "":
			return "error: " + err.Error()
		default:
			return output + "\nerror: " + err.Error()
		}
	}

	var text strings.Builder
	for _, section := range []struct {
		title string
		body  string
	}{
		{"VAULT", vault},
		{"HEAD", git("rev-parse", "HEAD")},
		{"BRANCH", git("rev-parse", "--abbrev-ref", "HEAD")},
		{"STATUS", git("status", "--short")},
	} {
		fmt.Fprintf(&text, "[%s]\n%s\n\n", section.title, section.body)
	}
	b.addText("vault-git.txt", text.String())
}

func bugreportReadme(now time.Time, runID, traceID string, warnings []string) string {
	var text strings.Builder
	fmt.Fprintf(&text, "bibnote bug report\n\nGenerated: %s\nVersion: %s\nrun_id: %s\ntrace_id: %s\n\n",
		now.Format(time.RFC3339), Version, runID, traceID)
	fmt.Fprintf(&text, "Contents:\n- logs/ (newest %d run logs)\n", bugreportLogs)
	text.WriteString("- config-user.toml, config-project.toml (secrets redacted)\n")
	text.WriteString("- doctor.json, version.txt, last-run.txt, vault-git.txt\n\n")
	text.WriteString("Search traces for the trace_id above to find the failing run.\n")
	if len(warnings) > 0 {
		text.WriteString("\nWarnings:\n")
		for _, warning := range warnings {
			text.WriteString("- " + warning + "\n")
		}
	}
	return text.String()
}

func (b *bundle) writeArchive(path string, modTime time.Time) (err error) {
	// #nosec G304 -- path is generated in the working directory with a fixed name pattern.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", path, err)
	}
	zw := gzip.NewWriter(file)
	tw := tar.NewWriter(zw)
	defer func() {
		for _, closer := range []io.Closer{tw, zw, file} {
			if closeErr := closer.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close archive %s: %w", path, closeErr)
			}
		}
	}()

	for _, entry := range b.files {
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o600,
			Size:    int64(len(entry.data)),
			ModTime: modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write %s header: %w", entry.name, err)
		}
		if _, err := tw.Write(entry.data); err != nil {
			return fmt.Errorf("write %s: %w", entry.name, err)
		}
	}
	return nil
}

// newestFiles lists the regular files of dir, newest first, at most limit of them.
func newestFiles(dir string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	modTimes := make(map[string]time.Time, len(entries))
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		modTimes[path] = info.ModTime()
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		return modTimes[paths[i]].After(modTimes[paths[j]])
	})
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}
