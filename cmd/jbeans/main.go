// Command jbeans evaluates bean scripts against the host runtime.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daimatz/jbeans/pkg/beans"
	"github.com/daimatz/jbeans/pkg/config"
	"github.com/daimatz/jbeans/pkg/logging"
	"github.com/daimatz/jbeans/pkg/native"
	"github.com/daimatz/jbeans/pkg/script"
	"github.com/daimatz/jbeans/pkg/vm"
)

type app struct {
	configPath string
	classpath  []string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "jbeans",
		Short:         "Evaluate bean scripts",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "jbeans.yaml", "config file")
	root.PersistentFlags().StringSliceVar(&a.classpath, "classpath", nil, "class directories, overriding the config")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(a.runCmd(), a.methodsCmd())
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if len(a.classpath) > 0 {
		cfg.Classpath = a.classpath
	}
	logger, err := logging.New(cfg.Level(), a.verbose)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// evaluator builds a registry from the config, installs the library classes
// writing to out, and returns an evaluator over it.
func (a *app) evaluator(out io.Writer) (*beans.Evaluator, error) {
	opts := []vm.RegistryOption{vm.WithLogger(a.logger)}
	if src := a.cfg.ClassSource(); src != nil {
		opts = append(opts, vm.WithSource(src))
	}
	r := vm.NewRegistry(opts...)
	if _, err := native.Install(r, native.WithStdout(out)); err != nil {
		return nil, err
	}
	return beans.New(
		beans.WithRegistry(r),
		beans.WithLogger(a.logger),
		beans.WithForceAccess(a.cfg.Evaluator.ForceAccess),
		beans.WithIteratorParity(a.cfg.Evaluator.IteratorParity),
	), nil
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Run a script and print the values it names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := script.ParseFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ev, err := a.evaluator(out)
			if err != nil {
				return err
			}
			defer ev.Close()
			a.logger.Info("running script", zap.String("path", args[0]), zap.Int("nodes", len(s.Nodes)))
			results, err := script.NewDecoder(ev, script.WithLogger(a.logger)).Run(s)
			for _, r := range results {
				if r.ID != "" {
					fmt.Fprintf(out, "%s = %s\n", r.ID, vm.ToString(r.Value))
				}
			}
			return err
		},
	}
}

func (a *app) methodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods <class>",
		Short: "List the public methods of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ev, err := a.evaluator(out)
			if err != nil {
				return err
			}
			defer ev.Close()
			c, err := ev.Registry().TypeByName(args[0])
			if err != nil {
				return err
			}
			lines := make([]string, 0)
			for _, m := range c.PublicMethods() {
				lines = append(lines, m.String())
			}
			slices.Sort(lines)
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
			return nil
		},
	}
}
