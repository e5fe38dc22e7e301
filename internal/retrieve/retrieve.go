// Package retrieve fetches organization source through the platform CLI.
//
// [SFCLI] shells out to the "sf" command with --json and decodes its
// envelope. Each retrieval writes into a fresh staging directory
// <work>/<orgID>/<uuid>, so files referenced by the currently cached tree
// stay valid until a newer snapshot has been committed and older ones are
// pruned.
package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphi011/orgcmp/internal/cmd"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/tree"
)

var (
	// ErrCLINotFound is returned when the configured CLI binary is not on PATH.
	ErrCLINotFound = errors.New("platform CLI not found")

	// ErrContentUnsupported is returned by ContentOf for metadata types
	// whose source cannot be queried directly.
	ErrContentUnsupported = errors.New("remote content not supported for metadata type")
)

// Retriever downloads the source of an org and returns the directory it was written to.
type Retriever interface {
	RetrieveSource(ctx context.Context, org registry.Org) (string, error)
}

// ContentFetcher returns the remote content of a single artifact.
type ContentFetcher interface {
	ContentOf(ctx context.Context, org registry.Org, ref tree.FileRef) (string, error)
}

// sourceDir is the directory inside a staging dir that receives the source.
const sourceDir = "src"

const projectFile = `{
  "packageDirectories": [{ "path": "src", "default": true }],
  "name": "orgcmp-retrieve"
}
`

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// SFCLI talks to the platform through the sf command line tool.
type SFCLI struct {
	CLI      string        // binary name or path, usually "sf"
	WorkDir  string        // root of the per-org staging directories
	Metadata []string      // metadata types to retrieve
	Timeout  time.Duration // upper bound for a single retrieval

	run    runFunc
	lookup func(string) (string, error)
	newID  func() string
}

// NewSFCLI creates an SFCLI.
func NewSFCLI(cli, workDir string, metadata []string, timeout time.Duration) *SFCLI {
	return &SFCLI{
		CLI:      cli,
		WorkDir:  workDir,
		Metadata: metadata,
		Timeout:  timeout,
		run:      cmd.OutputContext,
		lookup:   exec.LookPath,
		newID:    uuid.NewString,
	}
}

// CheckCLI verifies that the CLI binary can be found.
func (s *SFCLI) CheckCLI() error {
	if _, err := s.lookup(s.CLI); err != nil {
		return fmt.Errorf("%w: %s (install the Salesforce CLI: https://developer.salesforce.com/tools/salesforcecli)", ErrCLINotFound, s.CLI)
	}
	return nil
}

// envelope is the common shape of "sf --json" output.
type envelope struct {
	Status  int             `json:"status"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// call runs the CLI and decodes the result payload into dest.
// A non-zero status is reported with the CLI's own message when present.
func (s *SFCLI) call(ctx context.Context, dir string, dest any, args ...string) error {
	out, runErr := s.run(ctx, dir, s.CLI, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var env envelope
	if err := json.Unmarshal(out, &env); err != nil {
		if runErr != nil {
			return fmt.Errorf("%s %s failed: %w", s.CLI, args[0], runErr)
		}
		return fmt.Errorf("failed to parse %s output: %w", s.CLI, err)
	}
	if env.Status != 0 || runErr != nil {
		msg := env.Message
		if msg == "" && runErr != nil {
			msg = runErr.Error()
		}
		if env.Name != "" {
			msg = env.Name + ": " + msg
		}
		return fmt.Errorf("%s %s failed: %s", s.CLI, args[0], msg)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", s.CLI, err)
	}
	return nil
}

// RetrieveSource retrieves the configured metadata types of org into a new
// staging directory and returns the directory holding the source.
// On failure the staging directory is removed.
func (s *SFCLI) RetrieveSource(ctx context.Context, org registry.Org) (string, error) {
	if err := s.CheckCLI(); err != nil {
		return "", err
	}
	if org.Username == "" {
		return "", fmt.Errorf("org %s has no username", org.ID)
	}

	staging := filepath.Join(s.WorkDir, org.ID, s.newID())
	if err := os.MkdirAll(filepath.Join(staging, sourceDir), 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, "sfdx-project.json"), []byte(projectFile), 0o644); err != nil {
		_ = os.RemoveAll(staging)
		return "", fmt.Errorf("create staging project: %w", err)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := []string{"project", "retrieve", "start", "--target-org", org.Username}
	for _, m := range s.Metadata {
		args = append(args, "--metadata", m)
	}
	args = append(args, "--output-dir", sourceDir, "--wait", waitMinutes(s.Timeout), "--json")

	log.FromContext(ctx).Debug("retrieving source", "org", org.ID, "dir", staging)

	var result struct {
		Files []struct {
			FullName string `json:"fullName"`
			Type     string `json:"type"`
			State    string `json:"state"`
			FilePath string `json:"filePath"`
		} `json:"files"`
	}
	if err := s.call(ctx, staging, &result, args...); err != nil {
		_ = os.RemoveAll(staging)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("retrieval timed out after %s: %w", s.Timeout, err)
		}
		return "", err
	}

	log.FromContext(ctx).Debug("source retrieved", "org", org.ID, "files", len(result.Files))
	return filepath.Join(staging, sourceDir), nil
}

// waitMinutes converts a timeout to the CLI's --wait minutes.
func waitMinutes(d time.Duration) string {
	if d <= 0 {
		return "33"
	}
	return fmt.Sprintf("%d", int(math.Ceil(d.Minutes())))
}

// contentFields maps metadata types to the Tooling API field holding their source.
var contentFields = map[string]string{
	"ApexClass":     "Body",
	"ApexTrigger":   "Body",
	"ApexPage":      "Markup",
	"ApexComponent": "Markup",
}

// ContentOf queries the Tooling API for the source of ref.
func (s *SFCLI) ContentOf(ctx context.Context, org registry.Org, ref tree.FileRef) (string, error) {
	field, ok := contentFields[ref.MetadataType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrContentUnsupported, ref.MetadataType)
	}
	if err := s.CheckCLI(); err != nil {
		return "", err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE Name = '%s'",
		field, ref.MetadataType, strings.ReplaceAll(ref.FullName, "'", `\'`))

	var result struct {
		Records []map[string]any `json:"records"`
	}
	err := s.call(ctx, "", &result,
		"data", "query", "--use-tooling-api", "--target-org", org.Username, "--query", query, "--json")
	if err != nil {
		return "", err
	}
	if len(result.Records) == 0 {
		return "", fmt.Errorf("%s %s not found in org %s", ref.MetadataType, ref.FullName, org.DisplayName())
	}

	content, ok := result.Records[0][field].(string)
	if !ok {
		return "", fmt.Errorf("%s %s in org %s has no readable %s field (got %T)",
			ref.MetadataType, ref.FullName, org.DisplayName(), field, result.Records[0][field])
	}
	return content, nil
}

// ListOrgs returns the orgs the CLI is authenticated against.
func (s *SFCLI) ListOrgs(ctx context.Context) ([]registry.Org, error) {
	if err := s.CheckCLI(); err != nil {
		return nil, err
	}

	type authOrg struct {
		OrgID       string `json:"orgId"`
		Username    string `json:"username"`
		Alias       string `json:"alias"`
		InstanceURL string `json:"instanceUrl"`
	}
	var result map[string][]authOrg
	if err := s.call(ctx, "", &result, "org", "list", "--json"); err != nil {
		return nil, err
	}

	var orgs []registry.Org
	seen := make(map[string]bool)
	// Fixed group order keeps the output stable.
	for _, group := range []string{"devHubs", "nonScratchOrgs", "sandboxes", "scratchOrgs", "other"} {
		for _, o := range result[group] {
			if o.OrgID == "" || seen[o.OrgID] {
				continue
			}
			seen[o.OrgID] = true
			orgs = append(orgs, registry.Org{
				ID:          o.OrgID,
				Username:    o.Username,
				Alias:       o.Alias,
				InstanceURL: o.InstanceURL,
			})
		}
	}
	return orgs, nil
}

// stagingRoot returns the <work>/<orgID>/<uuid> directory containing dir.
func (s *SFCLI) stagingRoot(dir string) (orgID, root string, err error) {
	rel, err := filepath.Rel(s.WorkDir, dir)
	if err != nil {
		return "", "", err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == ".." || parts[0] == "." {
		return "", "", fmt.Errorf("%s is not a staging directory", dir)
	}
	return parts[0], filepath.Join(s.WorkDir, parts[0], parts[1]), nil
}

// Discard removes the staging directory containing dir.
func (s *SFCLI) Discard(dir string) error {
	_, root, err := s.stagingRoot(dir)
	if err != nil {
		return err
	}
	return os.RemoveAll(root)
}

// Prune removes every staging directory of orgID except the one containing keepDir.
func (s *SFCLI) Prune(orgID, keepDir string) error {
	_, keep, err := s.stagingRoot(keepDir)
	if err != nil {
		return err
	}

	orgDir := filepath.Join(s.WorkDir, orgID)
	entries, err := os.ReadDir(orgDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		path := filepath.Join(orgDir, e.Name())
		if !e.IsDir() || path == keep {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveOrg deletes every staging directory of orgID.
func (s *SFCLI) RemoveOrg(orgID string) error {
	if orgID == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(s.WorkDir, orgID))
}
