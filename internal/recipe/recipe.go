package recipe

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/cruciblehq/bootpack/internal/crex"
)

// Full description of a packaging pipeline.
type Recipe struct {
	Builder  Builder  `yaml:"builder" json:"builder"`   // Build Stage configuration.
	JRE      JRE      `yaml:"jre" json:"jre"`           // Trimmed runtime configuration.
	Runtime  Runtime  `yaml:"runtime" json:"runtime"`   // Runtime Assembly Stage configuration.
	Identity Identity `yaml:"identity" json:"identity"` // Non-privileged account the service runs as.
}

// Configures the container that compiles the artifact.
type Builder struct {
	Image       string   `yaml:"image" json:"image"`             // Base image with a full JDK.
	Workdir     string   `yaml:"workdir" json:"workdir"`         // Directory inputs are staged into.
	Descriptors []string `yaml:"descriptors" json:"descriptors"` // Build descriptors, staged first and hashed for the dependency cache.
	Sources     []string `yaml:"sources" json:"sources"`         // Source paths, staged after descriptors.
	Wrapper     string   `yaml:"wrapper" json:"wrapper"`         // Build tool wrapper script, made executable before the build.
	Task        string   `yaml:"task" json:"task"`               // Build invocation, run from the workdir.
	Artifact    string   `yaml:"artifact" json:"artifact"`       // Wildcard matching the built artifact, relative to the workdir.
	CacheDir    string   `yaml:"cache" json:"cache"`             // Directory holding downloaded dependencies, saved between builds.
}

// Configures the module-linked runtime derived from the builder's JDK.
type JRE struct {
	Modules []string `yaml:"modules" json:"modules"` // Explicit platform modules to link.
	Output  string   `yaml:"output" json:"output"`   // Directory the runtime is written to inside the builder.
}

// Configures the final image.
type Runtime struct {
	Image     string   `yaml:"image" json:"image"`       // Minimal base image.
	Workdir   string   `yaml:"workdir" json:"workdir"`   // Application directory.
	JREDir    string   `yaml:"jre" json:"jre"`           // Where the trimmed runtime is installed.
	Artifact  string   `yaml:"artifact" json:"artifact"` // Artifact file name inside the workdir.
	DataDir   string   `yaml:"data" json:"data"`         // Data directory, relative to the workdir.
	StateFile string   `yaml:"state" json:"state"`       // Placeholder state file created empty in the data directory.
	Locale    string   `yaml:"locale" json:"locale"`     // Value of LANG.
	Port      int      `yaml:"port" json:"port"`         // Declared TCP port.
	Args      []string `yaml:"args" json:"args"`         // Build arguments re-exposed verbatim as environment variables.
}

// Non-privileged user and group the service runs as.
type Identity struct {
	User  string `yaml:"user" json:"user"`
	Group string `yaml:"group" json:"group"`
	UID   int    `yaml:"uid" json:"uid"`
	GID   int    `yaml:"gid" json:"gid"`
}

// Returns the stock recipe for a Gradle-built Spring Boot service.
func Default() *Recipe {
	return &Recipe{
		Builder: Builder{
			Image:   "eclipse-temurin:21-jdk",
			Workdir: "/workspace",
			Descriptors: []string{
				"gradlew",
				"gradlew.bat",
				"settings.gradle",
				"build.gradle",
				"gradle",
			},
			Sources:  []string{"src"},
			Wrapper:  "./gradlew",
			Task:     "./gradlew bootJar --no-daemon -x test",
			Artifact: "build/libs/*.jar",
			CacheDir: "/root/.gradle",
		},
		JRE: JRE{
			Modules: []string{
				"java.base",
				"java.logging",
				"java.sql",
				"java.xml",
				"java.naming",
				"java.desktop",
				"java.management",
				"java.security.jgss",
				"java.instrument",
				"jdk.unsupported",
			},
			Output: "/jre",
		},
		Runtime: Runtime{
			Image:     "debian:bookworm-slim",
			Workdir:   "/app",
			JREDir:    "/opt/jre",
			Artifact:  "app.jar",
			DataDir:   "data",
			StateFile: "sns_api.db",
			Locale:    "C.UTF-8",
			Port:      8080,
			Args: []string{
				"CODESPACE_NAME",
				"GITHUB_CODESPACES_PORT_FORWARDING_DOMAIN",
			},
		},
		Identity: Identity{
			User:  "appuser",
			Group: "appuser",
			UID:   1000,
			GID:   1000,
		},
	}
}

// Checks that every field the pipeline depends on is usable.
func (r *Recipe) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"builder.image", r.Builder.Image},
		{"builder.workdir", r.Builder.Workdir},
		{"builder.task", r.Builder.Task},
		{"builder.artifact", r.Builder.Artifact},
		{"jre.output", r.JRE.Output},
		{"runtime.image", r.Runtime.Image},
		{"runtime.workdir", r.Runtime.Workdir},
		{"runtime.jre", r.Runtime.JREDir},
		{"runtime.artifact", r.Runtime.Artifact},
		{"runtime.data", r.Runtime.DataDir},
		{"runtime.state", r.Runtime.StateFile},
		{"identity.user", r.Identity.User},
		{"identity.group", r.Identity.Group},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return crex.Wrapf(ErrMissing, "%s", f.field)
		}
	}

	if len(r.Builder.Descriptors) == 0 {
		return crex.Wrapf(ErrMissing, "builder.descriptors")
	}

	if len(r.JRE.Modules) == 0 {
		return crex.Wrapf(ErrMissing, "jre.modules")
	}

	for _, p := range []struct{ field, value string }{
		{"builder.workdir", r.Builder.Workdir},
		{"jre.output", r.JRE.Output},
		{"runtime.workdir", r.Runtime.Workdir},
		{"runtime.jre", r.Runtime.JREDir},
	} {
		if !path.IsAbs(p.value) {
			return crex.Wrapf(ErrRecipe, "%s must be absolute, got %q", p.field, p.value)
		}
	}

	if _, err := path.Match(path.Base(r.Builder.Artifact), ""); err != nil {
		return crex.Wrapf(ErrRecipe, "builder.artifact %q: %w", r.Builder.Artifact, err)
	}
	if strings.ContainsAny(path.Dir(r.Builder.Artifact), "*?[\\") {
		return crex.Wrapf(ErrRecipe, "builder.artifact %q: wildcards are only allowed in the file name", r.Builder.Artifact)
	}

	if strings.Contains(r.Runtime.Artifact, "/") || strings.Contains(r.Runtime.StateFile, "/") {
		return crex.Wrapf(ErrRecipe, "runtime.artifact and runtime.state must be plain file names")
	}

	if r.Runtime.Port < 0 || r.Runtime.Port > 65535 {
		return crex.Wrapf(ErrRecipe, "runtime.port %d out of range", r.Runtime.Port)
	}

	// Account 0 is root; the service must never run privileged.
	if r.Identity.UID <= 0 || r.Identity.GID <= 0 || r.Identity.User == "root" {
		return crex.Wrapf(ErrRecipe, "identity must be non-privileged, got %s (%d:%d)", r.Identity.User, r.Identity.UID, r.Identity.GID)
	}

	return nil
}

// Returns the absolute path of the artifact in the runtime image.
func (r *Recipe) ArtifactPath() string {
	return path.Join(r.Runtime.Workdir, r.Runtime.Artifact)
}

// Returns the absolute path of the data directory in the runtime image.
func (r *Recipe) DataPath() string {
	return path.Join(r.Runtime.Workdir, r.Runtime.DataDir)
}

// Returns the absolute path of the placeholder state file.
func (r *Recipe) StatePath() string {
	return path.Join(r.DataPath(), r.Runtime.StateFile)
}

// Returns the path of the java launcher inside the trimmed runtime.
func (r *Recipe) JavaPath() string {
	return path.Join(r.Runtime.JREDir, "bin", "java")
}

// Returns the numeric owner in "uid:gid" form.
func (id Identity) Owner() string {
	return strconv.Itoa(id.UID) + ":" + strconv.Itoa(id.GID)
}

// Returns a one-line description of the identity for logs.
func (id Identity) String() string {
	return fmt.Sprintf("%s:%s (%s)", id.User, id.Group, id.Owner())
}
