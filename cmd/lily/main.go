package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lily/internal/app"
	"lily/internal/config"
	"lily/internal/patch"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
		os.Exit(1)
	}
}

var (
	check = color.New(color.FgGreen).Sprint("\u2713")
	cross = color.New(color.FgRed).Sprint("\u2717")
)

func ok(format string, args ...any) {
	fmt.Printf("%s %s\n", check, fmt.Sprintf(format, args...))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", cross, err)
}

// newApp wires an App for the given command. The caller must defer Close.
func newApp(command string, initialize bool) (*app.App, error) {
	a, err := app.New(command, initialize)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "lily",
	Short:         "Plain version control",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a repository in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("init", true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Init(); err != nil {
			return err
		}
		ok("initialized repository in %s", a.Garden().Layout().Dir())
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [PATH...]",
	Short: "Stage files for the next commit ('.' stages the whole tree)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("add", false)
		if err != nil {
			return err
		}
		defer a.Close()

		var stageFile string
		if len(args) == 1 && args[0] == "." {
			stageFile, err = a.AddAll()
		} else {
			stageFile, err = a.Add(args)
		}
		if err != nil {
			return err
		}

		staged, err := a.StagedFiles()
		if err != nil {
			return err
		}
		ok("%d file(s) staged in %s", len(staged), stageFile)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the staging area",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("clear", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Clear(); err != nil {
			return err
		}
		ok("staging area cleared")
		return nil
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record the staged files as a commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		message, _ := cmd.Flags().GetString("message")

		a, err := newApp("commit", false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Commit(branch, message)
		if err != nil {
			return err
		}
		ok("committed %s on %s", c.ID, c.Branch)
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout NAME",
	Short: "Switch to a branch, creating it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("checkout", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Checkout(args[0]); err != nil {
			return err
		}
		ok("on branch %s", args[0])
		return nil
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote URL",
	Short: "Record the remote location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("remote", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetRemote(args[0]); err != nil {
			return err
		}
		ok("remote set to %s", args[0])
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff COMMIT",
	Short: "Show the changes recorded by a commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		html, _ := cmd.Flags().GetBool("html")

		a, err := newApp("diff", false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Garden().Commit(args[0])
		if err != nil {
			return err
		}

		printPatch(c.Content, html)
		return nil
	},
}

var fdiffCmd = &cobra.Command{
	Use:   "fdiff FIRST SECOND",
	Short: "Diff two files on disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		html, _ := cmd.Flags().GetBool("html")

		first, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		second, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		printPatch(patch.Diff(args[1], string(first), string(second)), html)
		return nil
	},
}

var packCmd = &cobra.Command{
	Use:   "pack NAME",
	Short: "Export the whole repository as NAME.repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("pack", false)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.Pack(args[0])
		if err != nil {
			return err
		}
		ok("repository exported to %s", out)
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render BRANCH",
	Short: "Export a branch as static HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		a, err := newApp("render", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Garden().Render(args[0], verbose); err != nil {
			return err
		}
		ok("rendered %s under %s", args[0], a.Garden().Layout().WebDir())
		return nil
	},
}

var binCmd = &cobra.Command{
	Use:   "bin",
	Short: "Serialize branches and commits to plain files",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		a, err := newApp("bin", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Garden().Serialize(verbose); err != nil {
			return err
		}
		ok("serialized to %s", a.Garden().Layout().BinDir())
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract PATH",
	Short: "Import a serialized export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		a, err := newApp("extract", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Garden().Deserialize(args[0], verbose); err != nil {
			return err
		}
		ok("imported from %s", args[0])
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log [BRANCH]",
	Short: "List commits on a branch, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("log", false)
		if err != nil {
			return err
		}
		defer a.Close()

		branch := ""
		if len(args) > 0 {
			branch = args[0]
		} else {
			info, err := a.Garden().Info()
			if err != nil {
				return err
			}
			branch = info.Branch.Current
		}

		commits, err := a.Garden().Commits(branch)
		if err != nil {
			return err
		}
		if len(commits) == 0 {
			fmt.Printf("no commits on %s\n", branch)
			return nil
		}

		for _, c := range commits {
			fmt.Printf("%s  %s  %s  %s\n",
				c.ID[:min(12, len(c.ID))],
				time.UnixMilli(c.Timestamp).UTC().Format("2006-01-02 15:04:05"),
				c.Author,
				c.Message,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init USER_ID",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		ok("configuration initialized at %s", defaults["config_path"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("User ID: %s\n", cfg.UserID)
		fmt.Printf("Log Dir: %s\n", cfg.LogDir)
		fmt.Printf("Ignore:  %v\n", cfg.Ignore)
		return nil
	},
}

func printPatch(p patch.Patch, html bool) {
	if html {
		for block := range p.RenderHTML() {
			fmt.Println(block)
		}
		return
	}
	for block := range p.Render() {
		fmt.Println(block)
	}
}

func init() {
	commitCmd.Flags().StringP("branch", "b", "", "Branch to commit on (default: current)")
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	commitCmd.MarkFlagRequired("message")

	diffCmd.Flags().Bool("html", false, "Emit HTML instead of terminal output")
	fdiffCmd.Flags().Bool("html", false, "Emit HTML instead of terminal output")
	renderCmd.Flags().BoolP("verbose", "v", false, "Log each rendered commit")
	binCmd.Flags().BoolP("verbose", "v", false, "Log each serialized commit")
	extractCmd.Flags().BoolP("verbose", "v", false, "Log each imported record")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(fdiffCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(binCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(configCmd)
}
