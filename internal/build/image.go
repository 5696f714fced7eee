package build

import (
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cruciblehq/bootpack/internal/recipe"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Labels recorded on exported images.
const (
	LabelDescriptors = "io.bootpack.descriptors.digest" // Digest of the build descriptors.
	LabelSources     = "io.bootpack.sources.digest"     // Digest of the descriptors and sources.
	LabelRuntime     = "io.bootpack.runtime"            // [RuntimeOutcome] of the build.
)

// PATH used when the base image declares none.
const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Declared surface of the final image.
type imageConfig struct {
	recipe      *recipe.Recipe
	buildArgs   map[string]string
	descriptors digest.Digest
	sources     digest.Digest
	runtime     RuntimeOutcome
}

// Applies the declared surface to the base image's config.
//
// The trimmed runtime's bin directory is prepended to the base PATH, build
// arguments are exposed verbatim, and the artifact is launched directly in
// exec form. Cmd is cleared so nothing from the base image is appended to
// the entrypoint.
func (c imageConfig) apply(cfg *ocispec.ImageConfig) {
	rc := c.recipe

	basePath, ok := lookupEnv(cfg.Env, "PATH")
	if !ok || basePath == "" {
		basePath = defaultPath
	}

	env := setEnv(cfg.Env, "LANG", rc.Runtime.Locale)
	args, unused := resolveBuildArgs(rc.Runtime.Args, c.buildArgs)
	for _, kv := range args {
		k, v, _ := strings.Cut(kv, "=")
		env = setEnv(env, k, v)
	}
	env = setEnv(env, "PATH", rc.Runtime.JREDir+"/bin:"+basePath)
	cfg.Env = env

	if len(unused) > 0 {
		slog.Warn("ignoring undeclared build arguments", "args", unused)
	}

	if rc.Runtime.Port > 0 {
		cfg.ExposedPorts = map[string]struct{}{
			strconv.Itoa(rc.Runtime.Port) + "/tcp": {},
		}
	}

	cfg.User = rc.Identity.User
	cfg.WorkingDir = rc.Runtime.Workdir
	cfg.Entrypoint = []string{rc.JavaPath(), "-jar", rc.ArtifactPath()}
	cfg.Cmd = nil

	if cfg.Labels == nil {
		cfg.Labels = make(map[string]string)
	}
	cfg.Labels[LabelDescriptors] = c.descriptors.String()
	cfg.Labels[LabelSources] = c.sources.String()
	cfg.Labels[LabelRuntime] = string(c.runtime)
}

// Pairs each declared build argument with its given value, defaulting to
// empty. Returns the "KEY=value" entries in declaration order and the sorted
// names of given arguments that were not declared.
func resolveBuildArgs(declared []string, given map[string]string) (env, unused []string) {
	for _, name := range declared {
		env = append(env, name+"="+given[name])
	}
	for _, name := range slices.Sorted(maps.Keys(given)) {
		if !slices.Contains(declared, name) {
			unused = append(unused, name)
		}
	}
	return env, unused
}

// Returns the value of key in a "KEY=value" list.
func lookupEnv(env []string, key string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

// Returns a copy of env with key set to value, replacing an existing entry
// in place or appending a new one.
func setEnv(env []string, key, value string) []string {
	out := slices.Clone(env)
	for i, kv := range out {
		if k, _, ok := strings.Cut(kv, "="); ok && k == key {
			out[i] = key + "=" + value
			return out
		}
	}
	return append(out, key+"="+value)
}
