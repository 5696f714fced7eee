package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/cruciblehq/bootpack/internal/build"
	"github.com/cruciblehq/bootpack/internal/cache"
	"github.com/cruciblehq/bootpack/internal/client"
	"github.com/cruciblehq/bootpack/internal/crex"
	"github.com/cruciblehq/bootpack/internal/paths"
	"github.com/cruciblehq/bootpack/internal/protocol"
	"github.com/cruciblehq/bootpack/internal/recipe"
	"github.com/cruciblehq/bootpack/internal/runtime"
)

// Name of the optional recipe file in a project root.
const projectRecipe = "bootpack.yaml"

// Represents the 'bootpack build' command.
type BuildCmd struct {
	Root      string            `arg:"" optional:"" default:"." help:"Project root." type:"existingdir"`
	Output    string            `short:"o" default:"dist" help:"Output directory for the exported image." type:"path"`
	Tag       string            `short:"t" help:"Image reference recorded in the archive." placeholder:"NAME"`
	Platform  []string          `help:"Target platform, repeatable. Defaults to the host." placeholder:"OS/ARCH"`
	BuildArg  map[string]string `help:"Build argument exposed in the image environment, repeatable." placeholder:"KEY=VALUE"`
	Recipe    []string          `help:"Recipe file overlaid after the user and project recipes, repeatable." type:"existingfile"`
	Daemon    bool              `help:"Run the build on the bootpack daemon."`
	NoCache   bool              `help:"Neither restore nor save the dependency cache."`
	JSON      bool              `name:"json" help:"Print the result as JSON."`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return err
	}
	output, err := filepath.Abs(c.Output)
	if err != nil {
		return err
	}

	rc, err := loadRecipe(root, c.Recipe)
	if err != nil {
		return err
	}

	resource := filepath.Base(root)

	var result *build.Result
	if c.Daemon {
		result, err = client.New(socketPath()).Build(ctx, &protocol.BuildRequest{
			Root:      root,
			Output:    output,
			Resource:  resource,
			Tag:       c.Tag,
			Platforms: c.Platform,
			BuildArgs: c.BuildArg,
			Recipe:    rc,
			NoCache:   c.NoCache,
		})
	} else {
		result, err = c.runLocal(ctx, build.Options{
			Recipe:    rc,
			Resource:  resource,
			Tag:       c.Tag,
			Root:      root,
			Output:    output,
			Platforms: c.Platform,
			BuildArgs: c.BuildArg,
		})
	}
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(os.Stdout, result)
}

// Runs the build in this process against containerd.
func (c *BuildCmd) runLocal(ctx context.Context, opts build.Options) (*build.Result, error) {
	rt, err := runtime.New(runtime.Options{
		Address:     RootCmd.Containerd,
		Namespace:   RootCmd.Namespace,
		Snapshotter: RootCmd.Snapshotter,
	})
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	if !c.NoCache {
		opts.Cache = cache.New(paths.DependencyCache())
	}

	return build.Run(ctx, rt, opts)
}

// Loads the effective recipe for root: the defaults, then the user recipe,
// then the project's bootpack.yaml, then each explicit file.
func loadRecipe(root string, files []string) (*recipe.Recipe, error) {
	sources := append([]string{paths.UserRecipe(), filepath.Join(root, projectRecipe)}, files...)

	rc, err := recipe.Load(recipe.Default(), sources...)
	if err != nil {
		return nil, err
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("recipe loaded", "sources", sources)
	return rc, nil
}

// Writes one line per platform.
func printResult(w io.Writer, result *build.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tIMAGE\tRUNTIME\tCACHE")
	for _, p := range result.Platforms {
		cached := "miss"
		if p.CacheHit {
			cached = "hit"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Platform, p.Image, p.Runtime, cached)
	}
	if err := tw.Flush(); err != nil {
		return crex.Wrap(build.ErrFileSystemOperation, err)
	}
	return nil
}

// Represents the 'bootpack recipe' command.
type RecipeCmd struct {
	Root   string   `arg:"" optional:"" default:"." help:"Project root." type:"existingdir"`
	Recipe []string `help:"Recipe file overlaid after the user and project recipes, repeatable." type:"existingfile"`
}

// Executes the recipe command.
func (c *RecipeCmd) Run(ctx context.Context) error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return err
	}

	rc, err := loadRecipe(root, c.Recipe)
	if err != nil {
		return err
	}
	return rc.Encode(os.Stdout)
}
