package build

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cruciblehq/bootpack/internal/crex"
)

// How the trimmed runtime was produced.
type RuntimeOutcome string

const (
	RuntimeEnhanced    RuntimeOutcome = "enhanced"    // Linked from the listed modules.
	RuntimeDegraded    RuntimeOutcome = "degraded"    // Copied from the JDK's bundled runtime.
	RuntimeUnavailable RuntimeOutcome = "unavailable" // Neither linking nor the fallback copy worked.
)

// Checks for the module linker in the builder's JDK.
const jlinkCheck = `test -x "$JAVA_HOME/bin/jlink"`

// Produces the trimmed runtime in the builder.
//
// When the module linker is present it is run with the recipe's fixed
// module list, and a failure is fatal. Otherwise the JDK's bundled runtime
// is copied to the output directory instead. If that fails too, the outcome
// is [RuntimeUnavailable] and the build continues without a runtime.
func (p *pipeline) minimizeRuntime(ctx context.Context, b *stage) (RuntimeOutcome, error) {
	jre := p.recipe.JRE

	check, err := b.sh(ctx, jlinkCheck, modifier{})
	if err != nil {
		return "", crex.Wrap(ErrRuntimeImage, err)
	}

	if check.OK() {
		command, err := jlinkCommand(jre.Modules, jre.Output)
		if err != nil {
			return "", crex.Wrap(ErrRuntimeImage, err)
		}
		slog.Info("linking runtime", "modules", len(jre.Modules), "output", jre.Output)
		if err := b.mustSh(ctx, ErrRuntimeImage, command, modifier{}); err != nil {
			return "", err
		}
		return RuntimeEnhanced, nil
	}

	slog.Info("module linker not found, copying bundled runtime", "output", jre.Output)

	command, err := fallbackCommand(jre.Output)
	if err != nil {
		return "", crex.Wrap(ErrRuntimeImage, err)
	}

	result, err := b.sh(ctx, command, modifier{})
	if err != nil {
		return "", crex.Wrap(ErrRuntimeImage, err)
	}
	if !result.OK() {
		slog.Warn("runtime unavailable, image will have no java runtime",
			"output", jre.Output,
			"exit", result.ExitCode,
			"stderr", tail(result.Stderr),
		)
		return RuntimeUnavailable, nil
	}

	return RuntimeDegraded, nil
}

// Builds the module linker invocation. Headers, man pages, and debug
// symbols are left out and the result is compressed.
func jlinkCommand(modules []string, output string) (string, error) {
	args, err := shellJoin(
		"--no-header-files",
		"--no-man-pages",
		"--compress=2",
		"--strip-debug",
		"--add-modules", strings.Join(modules, ","),
		"--output", output,
	)
	if err != nil {
		return "", err
	}

	command := `"$JAVA_HOME/bin/jlink" ` + args
	if err := checkScript(command); err != nil {
		return "", err
	}
	return command, nil
}

// Builds the fallback copy of the JDK's bundled runtime into output.
func fallbackCommand(output string) (string, error) {
	out, err := quote(output)
	if err != nil {
		return "", err
	}

	command := `test -n "$JAVA_HOME" && test -d "$JAVA_HOME/jre" && mkdir -p ` + out + ` && cp -a "$JAVA_HOME/jre/." ` + out + `/`
	if err := checkScript(command); err != nil {
		return "", err
	}
	return command, nil
}
