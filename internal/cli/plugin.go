package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/plugman-dev/plugman/internal/config"
	"github.com/plugman-dev/plugman/plugin"
	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/fetcher"
	"github.com/plugman-dev/plugman/plugin/filesystem"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage installed plugins",
	}
	cmd.AddCommand(newPluginListCmd())
	cmd.AddCommand(newPluginInstallCmd())
	cmd.AddCommand(newPluginUninstallCmd())
	cmd.AddCommand(newPluginUpdateCmd())
	return cmd
}

// newService wires the installation manager from the effective configuration.
func newService(ctx context.Context) (*plugin.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slogFromContext(ctx)
	repo := filesystem.NewFileRegistryRepository(filepath.Join(cfg.Root, plugin.RegistryFileName))

	var ignore []string
	if len(cfg.Ignore) > 0 {
		ignore = cfg.Ignore
	}
	fetch := fetcher.NewSourceFetcher(filepath.Join(cfg.Root, plugin.StagingDirName),
		fetcher.WithCloneDepth(cfg.CloneDepth),
		fetcher.WithTimeout(cfg.FetchTimeout.Duration),
		fetcher.WithIgnorePatterns(ignore),
		fetcher.WithLogger(logger),
	)

	return plugin.NewService(cfg.Root, repo, fetch, plugin.WithLogger(logger)), nil
}

func newPluginInstallCmd() *cobra.Command {
	var (
		ref      string
		repoPath string
		name     string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "install <source>",
		Short: "Install a plugin from a source",
		Long: `Install a plugin from a GitHub shorthand (github:owner/repo), a full
git URL, an SSH remote (user@host:owner/repo.git), or a local directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := svc.Install(cmd.Context(), plugin.InstallRequest{
				Source: args[0],
				Ref:    ref,
				Subdir: repoPath,
				Name:   name,
				Force:  force,
			})
			if err != nil {
				return err
			}
			printInstalled(cmd, "installed", rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "branch, tag, or commit to install")
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "subdirectory of the repository containing the plugin")
	cmd.Flags().StringVar(&name, "name", "", "override the derived plugin name")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing installation")
	return cmd
}

func newPluginUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Uninstall a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Uninstall(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %q\n", args[0])
			return nil
		},
	}
}

func newPluginUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <name>",
		Short: "Update an installed plugin from its original source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := svc.Update(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printInstalled(cmd, "updated", rec)
			return nil
		},
	}
}

func newPluginListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printListJSON(cmd, svc.Root(), entries)
			}
			printListText(cmd, svc.Root(), entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")
	return cmd
}

func printInstalled(cmd *cobra.Command, verb string, rec *entities.InstalledPlugin) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Successfully %s %q", verb, rec.Name)
	if rec.Version != "" {
		fmt.Fprintf(out, " v%s", rec.Version)
	}
	fmt.Fprintln(out)
	if rec.Description != "" {
		fmt.Fprintf(out, "  %s\n", rec.Description)
	}
	fmt.Fprintf(out, "  Source: %s\n", rec.Source.String())
	fmt.Fprintf(out, "  Ref:    %s\n", shortRef(rec.ResolvedRef))
	fmt.Fprintf(out, "  Path:   %s\n", rec.InstallPath)
}

func printListText(cmd *cobra.Command, root string, entries []plugin.ListEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No plugins installed in %s\n", root)
		return
	}
	fmt.Fprintf(out, "Installed plugins in %s:\n", root)
	for _, e := range entries {
		fmt.Fprintf(out, "  %s", e.Plugin.Name)
		if e.Plugin.Version != "" {
			fmt.Fprintf(out, " v%s", e.Plugin.Version)
		}
		if e.Plugin.ResolvedRef != "" {
			fmt.Fprintf(out, " (%s)", shortRef(e.Plugin.ResolvedRef))
		}
		if e.Plugin.Source.Kind() != "" {
			fmt.Fprintf(out, "  %s", e.Plugin.Source.String())
		}
		if e.Status.Inconsistent() {
			fmt.Fprintf(out, "  [%s]", e.Status)
		}
		fmt.Fprintln(out)
		if e.Plugin.Description != "" {
			fmt.Fprintf(out, "      %s\n", e.Plugin.Description)
		}
	}
}

// listRecordJSON mirrors the registry document fields for --json output.
type listRecordJSON struct {
	Name           string     `json:"name"`
	SourceKind     string     `json:"source_kind,omitempty"`
	SourceLocation string     `json:"source_location,omitempty"`
	SourceRef      string     `json:"source_ref,omitempty"`
	SourceSubdir   string     `json:"source_subdir,omitempty"`
	ResolvedRef    string     `json:"resolved_ref,omitempty"`
	InstallPath    string     `json:"install_path"`
	Version        string     `json:"version,omitempty"`
	Description    string     `json:"description,omitempty"`
	InstalledAt    *time.Time `json:"installed_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	Status         string     `json:"status"`
}

func printListJSON(cmd *cobra.Command, root string, entries []plugin.ListEntry) error {
	records := make([]listRecordJSON, 0, len(entries))
	for _, e := range entries {
		rec := listRecordJSON{
			Name:           e.Plugin.Name,
			SourceKind:     string(e.Plugin.Source.Kind()),
			SourceLocation: e.Plugin.Source.Location(),
			SourceRef:      e.Plugin.Source.Ref(),
			SourceSubdir:   e.Plugin.Source.Subdir(),
			ResolvedRef:    e.Plugin.ResolvedRef,
			InstallPath:    e.Plugin.InstallPath,
			Version:        e.Plugin.Version,
			Description:    e.Plugin.Description,
			Status:         string(e.Status),
		}
		if !e.Plugin.InstalledAt.IsZero() {
			t := e.Plugin.InstalledAt
			rec.InstalledAt = &t
		}
		if !e.Plugin.UpdatedAt.IsZero() {
			t := e.Plugin.UpdatedAt
			rec.UpdatedAt = &t
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		PluginsDir string           `json:"plugins_dir"`
		Plugins    []listRecordJSON `json:"plugins"`
	}{PluginsDir: root, Plugins: records})
}

func shortRef(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	return ref
}
