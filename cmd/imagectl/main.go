package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/imagectl/imagectl/internal/reconcile"
	"github.com/imagectl/imagectl/pkg/executer"
	"github.com/imagectl/imagectl/pkg/log"
)

func main() {
	command := NewImagectlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewImagectlCommand() *cobra.Command {
	logger := log.InitLogs()
	var logLevel string

	cmd := &cobra.Command{
		Use:   "imagectl",
		Short: "imagectl reconciles container image state through podman",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q", logLevel)
			}
			logger.SetLevel(level)
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warning, error)")
	cmd.AddCommand(NewCmdReconcile(logger))
	return cmd
}

type reconcileOptions struct {
	SpecFile   string
	Tag        string
	Arch       string
	State      string
	Force      bool
	NoPull     bool
	PullArgs   string
	Path       string
	Executable string
	CheckMode  bool

	Username  string
	Password  string
	AuthFile  string
	CertDir   string
	TLSVerify bool

	ContainerFile string
	Volumes       []string
	Annotations   map[string]string
	Format        string
	NoCache       bool
	ForceRm       bool
	Target        string
	BuildArgs     string

	Push             bool
	PushDest         string
	Transport        string
	PushFormat       string
	Compress         bool
	RemoveSignatures bool
	SignBy           string
	PushExtra        string

	QuadletDir      string
	QuadletFilename string
	QuadletOptions  []string
}

func NewCmdReconcile(logger *logrus.Logger) *cobra.Command {
	o := &reconcileOptions{State: string(reconcile.StatePresent)}

	cmd := &cobra.Command{
		Use:   "reconcile [NAME]",
		Short: "converge one image, or every image in a spec file, onto its desired state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []imageEntry
			switch {
			case o.SpecFile != "":
				if len(args) > 0 {
					return fmt.Errorf("cannot combine an image name with --file")
				}
				var err error
				entries, err = loadSpec(o.SpecFile)
				if err != nil {
					return err
				}
			case len(args) == 1:
				entries = []imageEntry{o.toEntry(cmd, args[0])}
			default:
				return fmt.Errorf("an image name or --file is required")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runReconcile(ctx, logger, o.CheckMode, entries)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&o.SpecFile, "file", "f", o.SpecFile, "YAML spec file listing images to reconcile")
	cmd.Flags().StringVar(&o.Tag, "tag", o.Tag, "tag applied when the name carries no tag or digest")
	cmd.Flags().StringVar(&o.Arch, "arch", o.Arch, "target architecture filter")
	cmd.Flags().StringVar(&o.State, "state", o.State, "desired state (present, absent, build, quadlet)")
	cmd.Flags().BoolVar(&o.Force, "force", o.Force, "pull, build, or remove even when the image already matches")
	cmd.Flags().BoolVar(&o.NoPull, "no-pull", o.NoPull, "do not fetch a missing image from a registry")
	cmd.Flags().StringVar(&o.PullArgs, "pull-extra-args", o.PullArgs, "extra arguments passed verbatim to podman pull")
	cmd.Flags().StringVar(&o.Path, "path", o.Path, "build context directory")
	cmd.Flags().StringVar(&o.Executable, "executable", o.Executable, "podman executable to drive")
	cmd.Flags().BoolVar(&o.CheckMode, "check", o.CheckMode, "report intended changes without performing them")

	cmd.Flags().StringVar(&o.Username, "username", o.Username, "registry username")
	cmd.Flags().StringVar(&o.Password, "password", o.Password, "registry password")
	cmd.Flags().StringVar(&o.AuthFile, "authfile", o.AuthFile, "path to the registry authentication file")
	cmd.Flags().StringVar(&o.CertDir, "cert-dir", o.CertDir, "directory with client certificates")
	cmd.Flags().BoolVar(&o.TLSVerify, "tls-verify", true, "require HTTPS and verify registry certificates")

	cmd.Flags().StringVar(&o.ContainerFile, "containerfile", o.ContainerFile, "path to the Containerfile")
	cmd.Flags().StringSliceVar(&o.Volumes, "volume", o.Volumes, "volume to mount during the build")
	cmd.Flags().StringToStringVar(&o.Annotations, "annotation", o.Annotations, "annotation to add to the built image")
	cmd.Flags().StringVar(&o.Format, "format", o.Format, "built image format (oci or docker)")
	cmd.Flags().BoolVar(&o.NoCache, "no-cache", o.NoCache, "build without layer cache")
	cmd.Flags().BoolVar(&o.ForceRm, "force-rm", o.ForceRm, "remove intermediate containers even on failure")
	cmd.Flags().StringVar(&o.Target, "target", o.Target, "build stage to target")
	cmd.Flags().StringVar(&o.BuildArgs, "build-extra-args", o.BuildArgs, "extra arguments passed verbatim to podman build")

	cmd.Flags().BoolVar(&o.Push, "push", o.Push, "push the image after converging")
	cmd.Flags().StringVar(&o.PushDest, "dest", o.PushDest, "push destination")
	cmd.Flags().StringVar(&o.Transport, "transport", o.Transport, "push transport (dir, docker, docker-archive, docker-daemon, oci-archive, ostree)")
	cmd.Flags().StringVar(&o.PushFormat, "push-format", o.PushFormat, "manifest format for the push")
	cmd.Flags().BoolVar(&o.Compress, "compress", o.Compress, "compress layers on push")
	cmd.Flags().BoolVar(&o.RemoveSignatures, "remove-signatures", o.RemoveSignatures, "discard existing signatures on push")
	cmd.Flags().StringVar(&o.SignBy, "sign-by", o.SignBy, "sign the pushed image with the given key")
	cmd.Flags().StringVar(&o.PushExtra, "push-extra-args", o.PushExtra, "extra arguments passed verbatim to podman push")

	cmd.Flags().StringVar(&o.QuadletDir, "quadlet-dir", o.QuadletDir, "directory for the quadlet unit file")
	cmd.Flags().StringVar(&o.QuadletFilename, "quadlet-filename", o.QuadletFilename, "quadlet unit filename without extension")
	cmd.Flags().StringArrayVar(&o.QuadletOptions, "quadlet-option", o.QuadletOptions, "option line appended to the quadlet unit")

	return cmd
}

// toEntry translates the flag surface into the same entry shape the YAML
// file carries, so both inputs normalize through one path.
func (o *reconcileOptions) toEntry(cmd *cobra.Command, name string) imageEntry {
	entry := imageEntry{
		Name:          name,
		Tag:           o.Tag,
		Arch:          o.Arch,
		State:         o.State,
		Force:         o.Force,
		Pull:          lo.ToPtr(!o.NoPull),
		PullExtraArgs: o.PullArgs,
		Path:          o.Path,
		Executable:    o.Executable,
		Username:      o.Username,
		Password:      o.Password,
		AuthFile:      o.AuthFile,
		CertDir:       o.CertDir,
		Push:          o.Push,
	}

	if cmd.Flags().Changed("tls-verify") {
		entry.TLSVerify = lo.ToPtr(o.TLSVerify)
	}

	buildFlagged := o.ContainerFile != "" || len(o.Volumes) > 0 || len(o.Annotations) > 0 ||
		o.Format != "" || o.NoCache || o.ForceRm || o.Target != "" || o.BuildArgs != ""
	if buildFlagged || o.State == string(reconcile.StateBuild) {
		entry.Build = &buildEntry{
			File:        o.ContainerFile,
			Volumes:     o.Volumes,
			Annotations: o.Annotations,
			Format:      o.Format,
			Cache:       lo.ToPtr(!o.NoCache),
			ForceRm:     o.ForceRm,
			Target:      o.Target,
			ExtraArgs:   o.BuildArgs,
		}
	}

	if o.Push {
		entry.PushArgs = &pushEntry{
			Dest:             o.PushDest,
			Transport:        o.Transport,
			Format:           o.PushFormat,
			Compress:         o.Compress,
			RemoveSignatures: o.RemoveSignatures,
			SignBy:           o.SignBy,
			ExtraArgs:        o.PushExtra,
		}
	}

	if o.State == string(reconcile.StateQuadlet) {
		entry.Quadlet = &quadletEntry{
			Dir:      o.QuadletDir,
			Filename: o.QuadletFilename,
			Options:  o.QuadletOptions,
		}
	}

	return entry
}

func runReconcile(ctx context.Context, logger *logrus.Logger, checkMode bool, entries []imageEntry) error {
	engine := reconcile.NewEngine(
		log.NewPrefixLoggerFromLogger("reconcile", logger),
		executer.NewCommonExecuter(),
	)

	results := make([]*reconcile.Result, 0, len(entries))
	var runErr error
	for _, entry := range entries {
		cfg, err := entry.toConfig()
		if err != nil {
			runErr = err
			break
		}
		cfg.CheckMode = checkMode

		result, err := engine.Reconcile(ctx, cfg)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			logger.Errorf("reconcile %s: %v", entry.Name, err)
			runErr = err
			break
		}
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	fmt.Println(string(out))

	changed := lo.CountBy(results, func(r *reconcile.Result) bool { return r.Changed })
	logger.Infof("%d of %d images changed", changed, len(entries))

	return runErr
}
