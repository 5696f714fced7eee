package build

import (
	"archive/tar"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/cruciblehq/bootpack/internal/cache"
	"github.com/cruciblehq/bootpack/internal/recipe"
	"github.com/cruciblehq/bootpack/internal/runtime"
	"github.com/google/go-cmp/cmp"
)

const (
	builderImage = "eclipse-temurin:21-jdk"
	runtimeImage = "debian:bookworm-slim"
)

// Writes a minimal Gradle project under a temporary directory.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"gradlew":                                  "#!/bin/sh\n",
		"gradlew.bat":                              "@echo off\n",
		"settings.gradle":                          "rootProject.name = 'sns-api'\n",
		"build.gradle":                             "plugins { id 'java' }\n",
		"gradle/wrapper/gradle-wrapper.properties": "distributionUrl=gradle-8.5-bin.zip\n",
		"src/main/java/App.java":                   "class App {}\n",
	}
	for rel, body := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// Builder behavior: jlink present, one runnable jar next to a plain one.
func happyBuilder(command string) *runtime.ExecResult {
	if strings.HasPrefix(command, "ls -1A") {
		return exit(0, "app-0.0.1-SNAPSHOT-plain.jar\napp-0.0.1-SNAPSHOT.jar\n")
	}
	return nil
}

// Runtime behavior: no user or group exists yet.
func freshRuntime(command string) *runtime.ExecResult {
	if strings.HasPrefix(command, "getent") {
		return exit(2, "")
	}
	return nil
}

func newTestEngine() *fakeEngine {
	return &fakeEngine{
		handlers: map[string]func(string) *runtime.ExecResult{
			builderImage: happyBuilder,
			runtimeImage: freshRuntime,
		},
		trees: map[string][]string{
			"/jre":         {"bin/java", "lib/modules"},
			"/root/.gradle": {"caches/modules-2/files.bin"},
		},
	}
}

func testOptions(t *testing.T, root string) Options {
	t.Helper()
	return Options{
		Recipe:    recipe.Default(),
		Resource:  "sns-api",
		Tag:       "sns-api:latest",
		Root:      root,
		Output:    t.TempDir(),
		Platforms: []string{"linux/amd64"},
		BuildArgs: map[string]string{"CODESPACE_NAME": "fuzzy-space"},
		Cache:     cache.New(t.TempDir()),
	}
}

func TestPipelineBuild(t *testing.T) {
	eng := newTestEngine()
	opts := testOptions(t, writeProject(t))

	p := newPipeline(eng, opts)
	result, err := p.build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.ID != p.run || p.run == "" {
		t.Errorf("result ID = %q, run = %q", result.ID, p.run)
	}

	if len(result.Platforms) != 1 {
		t.Fatalf("got %d platform results, want 1", len(result.Platforms))
	}
	res := result.Platforms[0]

	if res.Runtime != RuntimeEnhanced {
		t.Errorf("Runtime = %q, want %q", res.Runtime, RuntimeEnhanced)
	}
	if res.Group != Created || res.User != Created {
		t.Errorf("Group, User = %q, %q, want created", res.Group, res.User)
	}
	if want := "/workspace/build/libs/app-0.0.1-SNAPSHOT.jar"; res.Artifact != want {
		t.Errorf("Artifact = %q, want %q", res.Artifact, want)
	}
	if res.CacheHit {
		t.Error("CacheHit = true on first build")
	}
	if want := filepath.Join(opts.Output, runtime.ExportFilename); res.Image != want {
		t.Errorf("Image = %q, want %q", res.Image, want)
	}
	if want := cache.Scope(res.Descriptors, builderImage, "linux/amd64"); res.CacheKey != want {
		t.Errorf("CacheKey = %s, want %s", res.CacheKey, want)
	}
	if !opts.Cache.Has(res.CacheKey) {
		t.Error("dependency cache not saved after successful build")
	}

	builder := eng.only(t, builderImage)
	final := eng.only(t, runtimeImage)

	if builder.id != "sns-api-"+p.run+"-linux-amd64-builder" || final.id != "sns-api-"+p.run+"-linux-amd64-runtime" {
		t.Errorf("container ids = %q, %q", builder.id, final.id)
	}
	if !builder.destroyed || !final.destroyed {
		t.Error("stage containers not destroyed")
	}
	if !final.stopped {
		t.Error("runtime container not stopped before export")
	}
	if builder.exported != nil {
		t.Error("builder container exported")
	}
	if final.output != opts.Output || final.name != opts.Tag {
		t.Errorf("export to (%q, %q), want (%q, %q)", final.output, final.name, opts.Output, opts.Tag)
	}
}

func TestPipelineStagesDescriptorsBeforeSources(t *testing.T) {
	eng := newTestEngine()
	if _, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	builder := eng.only(t, builderImage)
	descriptor := slices.Index(builder.received, "/workspace/build.gradle")
	source := slices.Index(builder.received, "/workspace/src/main/java/App.java")
	if descriptor < 0 || source < 0 {
		t.Fatalf("inputs not staged: %v", builder.received)
	}
	if descriptor > source {
		t.Error("sources staged before descriptors")
	}
	if !builder.hasReceived("/workspace/gradle/wrapper/gradle-wrapper.properties") {
		t.Error("gradle directory not staged")
	}
}

func TestPipelineCompileCommand(t *testing.T) {
	eng := newTestEngine()
	if _, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	builder := eng.only(t, builderImage)
	compiles := builder.commandsWith("chmod +x ./gradlew && ")
	if len(compiles) != 1 {
		t.Fatalf("compile commands = %v, want exactly one", compiles)
	}
	if !strings.HasSuffix(compiles[0], "bootJar --no-daemon -x test") {
		t.Errorf("compile command %q does not skip tests", compiles[0])
	}

	i := slices.Index(builder.commands, compiles[0])
	if !slices.Contains(builder.envs[i], "GRADLE_USER_HOME=/root/.gradle") {
		t.Errorf("compile env = %v, missing GRADLE_USER_HOME", builder.envs[i])
	}
}

func TestPipelineJlinkFlags(t *testing.T) {
	eng := newTestEngine()
	if _, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	links := eng.only(t, builderImage).commandsWith(`"$JAVA_HOME/bin/jlink"`)
	if len(links) != 1 {
		t.Fatalf("jlink commands = %v, want one", links)
	}
	for _, flag := range []string{"--strip-debug", "--no-man-pages", "--no-header-files", "--compress=2", "--output /jre"} {
		if !strings.Contains(links[0], flag) {
			t.Errorf("jlink command %q missing %s", links[0], flag)
		}
	}
	if !strings.Contains(links[0], "java.base,java.logging,java.sql") {
		t.Errorf("jlink command %q missing module list", links[0])
	}
}

func TestPipelineRuntimeAssembly(t *testing.T) {
	eng := newTestEngine()
	if _, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	final := eng.only(t, runtimeImage)

	if !final.hasReceived("/opt/jre/bin/java") {
		t.Errorf("runtime not installed under /opt/jre: %v", final.received)
	}
	if !slices.Contains(final.received, "/app/app.jar") {
		t.Errorf("artifact not renamed to /app/app.jar: %v", final.received)
	}
	if final.hasReceived("/app/data") {
		t.Error("data directory sourced from a copy")
	}

	groupadd := slices.Index(final.commands, "groupadd --gid 1000 appuser")
	useradd := slices.Index(final.commands, "useradd --uid 1000 --gid 1000 --create-home appuser")
	if groupadd < 0 || useradd < 0 || groupadd > useradd {
		t.Errorf("identity commands out of order: %v", final.commands)
	}

	creates := final.commandsWith("mkdir -p /app/data")
	if len(creates) != 1 {
		t.Fatalf("placeholder commands = %v, want one", creates)
	}
	for _, part := range []string{": > /app/data/sns_api.db", "chown -R 1000:1000 /app"} {
		if !strings.Contains(creates[0], part) {
			t.Errorf("placeholder command %q missing %q", creates[0], part)
		}
	}
	if slices.Index(final.commands, creates[0]) < useradd {
		t.Error("ownership applied before the user exists")
	}
	if len(final.commandsWith("test -f /app/data/sns_api.db && test ! -s")) != 1 {
		t.Error("placeholder emptiness not verified")
	}
}

func TestPipelineImageConfig(t *testing.T) {
	eng := newTestEngine()
	result, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := result.Platforms[0]
	cfg := eng.only(t, runtimeImage).exported

	want := []string{
		"PATH=/opt/jre/bin:/usr/local/bin:/usr/bin:/bin",
		"LANG=C.UTF-8",
		"CODESPACE_NAME=fuzzy-space",
		"GITHUB_CODESPACES_PORT_FORWARDING_DOMAIN=",
	}
	if diff := cmp.Diff(want, cfg.Env); diff != "" {
		t.Errorf("Env mismatch (-want +got):\n%s", diff)
	}
	if cfg.User != "appuser" {
		t.Errorf("User = %q, want appuser", cfg.User)
	}
	if diff := cmp.Diff([]string{"/opt/jre/bin/java", "-jar", "/app/app.jar"}, cfg.Entrypoint); diff != "" {
		t.Errorf("Entrypoint mismatch (-want +got):\n%s", diff)
	}
	if cfg.Cmd != nil {
		t.Errorf("Cmd = %v, want nil", cfg.Cmd)
	}
	if _, ok := cfg.ExposedPorts["8080/tcp"]; !ok {
		t.Errorf("ExposedPorts = %v, want 8080/tcp", cfg.ExposedPorts)
	}
	wantLabels := map[string]string{
		LabelDescriptors: res.Descriptors.String(),
		LabelSources:     res.Sources.String(),
		LabelRuntime:     "enhanced",
	}
	if diff := cmp.Diff(wantLabels, cfg.Labels); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineDependencyCacheHit(t *testing.T) {
	root := writeProject(t)
	opts := testOptions(t, root)

	if _, err := newPipeline(newTestEngine(), opts).build(context.Background()); err != nil {
		t.Fatalf("first build: %v", err)
	}

	// A source-only change keeps the descriptor digest.
	if err := os.WriteFile(filepath.Join(root, "src/main/java/App.java"), []byte("class App { int x; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine()
	result, err := newPipeline(eng, opts).build(context.Background())
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !result.Platforms[0].CacheHit {
		t.Fatal("CacheHit = false after a source-only change")
	}
	if !eng.only(t, builderImage).hasReceived("/root/.gradle/caches/modules-2/files.bin") {
		t.Error("dependency cache not restored into the builder")
	}
}

func TestPipelineDegradedRuntime(t *testing.T) {
	eng := newTestEngine()
	eng.handlers[builderImage] = func(command string) *runtime.ExecResult {
		if command == jlinkCheck {
			return exit(1, "")
		}
		return happyBuilder(command)
	}

	result, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := result.Platforms[0].Runtime; got != RuntimeDegraded {
		t.Fatalf("Runtime = %q, want %q", got, RuntimeDegraded)
	}
	if len(eng.only(t, builderImage).commandsWith(`"$JAVA_HOME/bin/jlink"`)) != 0 {
		t.Error("jlink run although absent")
	}
	if !eng.only(t, runtimeImage).hasReceived("/opt/jre") {
		t.Error("degraded runtime not installed")
	}
}

func TestPipelineUnavailableRuntimeCompletes(t *testing.T) {
	eng := newTestEngine()
	eng.handlers[builderImage] = func(command string) *runtime.ExecResult {
		switch {
		case command == jlinkCheck:
			return exit(1, "")
		case strings.HasPrefix(command, `test -n "$JAVA_HOME"`):
			return exit(1, "")
		}
		return happyBuilder(command)
	}

	result, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := result.Platforms[0].Runtime; got != RuntimeUnavailable {
		t.Fatalf("Runtime = %q, want %q", got, RuntimeUnavailable)
	}

	final := eng.only(t, runtimeImage)
	if final.hasReceived("/opt/jre") {
		t.Error("runtime copied although unavailable")
	}
	if final.exported == nil {
		t.Fatal("image not exported")
	}
	if got := final.exported.Labels[LabelRuntime]; got != "unavailable" {
		t.Errorf("runtime label = %q, want unavailable", got)
	}
}

func TestPipelineFailures(t *testing.T) {
	tests := []struct {
		name     string
		builder  func(string) *runtime.ExecResult
		runtime  func(string) *runtime.ExecResult
		want     error
		assemble bool // Whether the runtime container is expected to start.
	}{
		{
			name: "compile failure",
			builder: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, "chmod +x") {
					return exit(1, "")
				}
				return happyBuilder(c)
			},
			want: ErrCompile,
		},
		{
			name: "jlink failure",
			builder: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, `"$JAVA_HOME/bin/jlink"`) {
					return exit(1, "")
				}
				return happyBuilder(c)
			},
			want: ErrRuntimeImage,
		},
		{
			name: "no artifact",
			builder: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, "ls -1A") {
					return exit(0, "app-0.0.1-SNAPSHOT-plain.jar\n")
				}
				return nil
			},
			want: ErrArtifactNotFound,
		},
		{
			name: "artifact directory missing",
			builder: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, "ls -1A") {
					return exit(2, "")
				}
				return nil
			},
			want: ErrArtifactNotFound,
		},
		{
			name: "ambiguous artifact",
			builder: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, "ls -1A") {
					return exit(0, "a.jar\nb.jar\n")
				}
				return nil
			},
			want: ErrAmbiguousArtifact,
		},
		{
			name:    "group provisioning failure",
			builder: happyBuilder,
			runtime: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, "groupadd") {
					return exit(10, "")
				}
				return freshRuntime(c)
			},
			want:     ErrProvision,
			assemble: true,
		},
		{
			name:    "placeholder not empty",
			builder: happyBuilder,
			runtime: func(c string) *runtime.ExecResult {
				if strings.HasPrefix(c, "test -f") {
					return exit(1, "")
				}
				return freshRuntime(c)
			},
			want:     ErrPlaceholder,
			assemble: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine()
			eng.handlers[builderImage] = tt.builder
			if tt.runtime != nil {
				eng.handlers[runtimeImage] = tt.runtime
			}

			_, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("build error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrBuild) {
				t.Errorf("build error %v does not wrap ErrBuild", err)
			}

			started := eng.started(runtimeImage)
			if tt.assemble != (len(started) == 1) {
				t.Errorf("runtime containers started = %d, want assembly %v", len(started), tt.assemble)
			}
			for _, c := range eng.containers {
				if !c.destroyed {
					t.Errorf("container %s not destroyed after failure", c.id)
				}
				if c.exported != nil {
					t.Errorf("container %s exported after failure", c.id)
				}
			}
		})
	}
}

func TestPipelineDependencyCacheCorruptEntry(t *testing.T) {
	opts := testOptions(t, writeProject(t))

	descriptors, err := cache.Key(opts.Root, opts.Recipe.Builder.Descriptors)
	if err != nil {
		t.Fatal(err)
	}
	key := cache.Scope(descriptors, builderImage, "linux/amd64")
	if err := opts.Cache.Put(key, strings.NewReader(strings.Repeat("x", 1024))); err != nil {
		t.Fatal(err)
	}

	result, err := newPipeline(newTestEngine(), opts).build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Platforms[0].CacheHit {
		t.Error("CacheHit = true for an unreadable entry")
	}

	rc, err := opts.Cache.Open(key)
	if err != nil {
		t.Fatalf("entry not saved again: %v", err)
	}
	defer rc.Close()
	if _, err := tar.NewReader(rc).Next(); err != nil {
		t.Errorf("entry still unreadable after rebuild: %v", err)
	}
}

func TestPipelineCompileFailureSkipsCacheSave(t *testing.T) {
	eng := newTestEngine()
	eng.handlers[builderImage] = func(c string) *runtime.ExecResult {
		if strings.HasPrefix(c, "chmod +x") {
			return exit(1, "")
		}
		return happyBuilder(c)
	}
	opts := testOptions(t, writeProject(t))

	if _, err := newPipeline(eng, opts).build(context.Background()); !errors.Is(err, ErrCompile) {
		t.Fatalf("build error = %v, want ErrCompile", err)
	}

	descriptors, err := cache.Key(opts.Root, opts.Recipe.Builder.Descriptors)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Cache.Has(cache.Scope(descriptors, builderImage, "linux/amd64")) {
		t.Error("dependency cache saved after failed build")
	}
}

func TestPipelineMissingInput(t *testing.T) {
	root := writeProject(t)
	if err := os.Remove(filepath.Join(root, "settings.gradle")); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine()
	_, err := newPipeline(eng, testOptions(t, root)).build(context.Background())
	if !errors.Is(err, ErrCopy) {
		t.Fatalf("build error = %v, want ErrCopy", err)
	}
	if len(eng.containers) != 0 {
		t.Error("containers started with missing inputs")
	}
}

func TestPipelineIdentityAlreadyPresent(t *testing.T) {
	tests := []struct {
		name    string
		handler func(string) *runtime.ExecResult
	}{
		{
			name:    "found by getent",
			handler: func(string) *runtime.ExecResult { return nil },
		},
		{
			name: "name in use",
			handler: func(c string) *runtime.ExecResult {
				switch {
				case strings.HasPrefix(c, "getent"):
					return exit(2, "")
				case strings.HasPrefix(c, "groupadd"), strings.HasPrefix(c, "useradd"):
					return exit(exitNameInUse, "")
				}
				return nil
			},
		},
		{
			name:    "created concurrently",
			handler: createdBehindOurBack(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine()
			eng.handlers[runtimeImage] = tt.handler

			result, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			res := result.Platforms[0]
			if res.Group != AlreadyPresent || res.User != AlreadyPresent {
				t.Errorf("Group, User = %q, %q, want already-present", res.Group, res.User)
			}
		})
	}
}

// Runtime behavior: accounts are missing when first looked up, then groupadd
// and useradd report a taken id because another process created them.
func createdBehindOurBack() func(string) *runtime.ExecResult {
	created := map[string]bool{}
	return func(c string) *runtime.ExecResult {
		switch {
		case strings.HasPrefix(c, "getent group"):
			if created["group"] {
				return nil
			}
			return exit(2, "")
		case strings.HasPrefix(c, "getent passwd"):
			if created["user"] {
				return nil
			}
			return exit(2, "")
		case strings.HasPrefix(c, "groupadd"):
			created["group"] = true
			return exit(exitIDInUse, "")
		case strings.HasPrefix(c, "useradd"):
			created["user"] = true
			return exit(exitIDInUse, "")
		}
		return nil
	}
}

func TestPipelineIdentityIDHeldByOtherAccount(t *testing.T) {
	tests := []struct {
		name  string
		taken string // Command prefix that reports the id in use.
	}{
		{"gid", "groupadd"},
		{"uid", "useradd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine()
			eng.handlers[runtimeImage] = func(c string) *runtime.ExecResult {
				switch {
				case strings.HasPrefix(c, "getent"):
					return exit(2, "")
				case strings.HasPrefix(c, tt.taken):
					return exit(exitIDInUse, "")
				}
				return nil
			}

			_, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
			if !errors.Is(err, ErrProvision) {
				t.Fatalf("build error = %v, want ErrProvision", err)
			}
			final := eng.only(t, runtimeImage)
			if final.exported != nil {
				t.Error("image exported for an account that was never created")
			}
			if n := len(final.commandsWith("getent")); n < 2 {
				t.Errorf("getent ran %d times, want a re-check after the failed create", n)
			}
		})
	}
}

func TestPipelineMultiPlatform(t *testing.T) {
	eng := newTestEngine()
	opts := testOptions(t, writeProject(t))
	opts.Platforms = []string{"linux/amd64", "linux/arm64"}

	result, err := newPipeline(eng, opts).build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var images []string
	for _, res := range result.Platforms {
		images = append(images, res.Image)
	}
	want := []string{
		filepath.Join(opts.Output, "linux-amd64", runtime.ExportFilename),
		filepath.Join(opts.Output, "linux-arm64", runtime.ExportFilename),
	}
	if diff := cmp.Diff(want, images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}

	for _, slug := range []string{"linux-amd64", "linux-arm64"} {
		if info, err := os.Stat(filepath.Join(opts.Output, slug)); err != nil || !info.IsDir() {
			t.Errorf("output directory %s not created", slug)
		}
	}
	if n := len(eng.started(runtimeImage)); n != 2 {
		t.Errorf("runtime containers = %d, want 2", n)
	}
	amd, arm := result.Platforms[0], result.Platforms[1]
	if amd.Descriptors != arm.Descriptors {
		t.Error("descriptor digest differs between platforms")
	}
	if amd.CacheKey == arm.CacheKey {
		t.Error("platforms share a dependency cache key")
	}
	if arm.CacheHit {
		t.Error("second platform restored the first platform's dependencies")
	}
	if !opts.Cache.Has(amd.CacheKey) || !opts.Cache.Has(arm.CacheKey) {
		t.Error("dependency cache not saved for every platform")
	}
}

func TestPipelineConcurrentRunsSameResource(t *testing.T) {
	eng := newTestEngine()
	root := writeProject(t)

	const runs = 3
	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := range runs {
		opts := testOptions(t, root)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = newPipeline(eng, opts).build(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	ids := map[string]bool{}
	for _, c := range eng.containers {
		if c.replaced {
			t.Errorf("container %s was replaced by another run", c.id)
		}
		if ids[c.id] {
			t.Errorf("container id %s used twice", c.id)
		}
		ids[c.id] = true
	}
	if len(ids) != 2*runs {
		t.Errorf("distinct container ids = %d, want %d", len(ids), 2*runs)
	}
}

func TestPipelineStartFailure(t *testing.T) {
	eng := newTestEngine()
	eng.startErr = errors.New("pull denied")

	_, err := newPipeline(eng, testOptions(t, writeProject(t))).build(context.Background())
	if !errors.Is(err, runtime.ErrRuntime) {
		t.Fatalf("build error = %v, want ErrRuntime", err)
	}
}

func TestPlatformSlug(t *testing.T) {
	if got := platformSlug("linux/arm64/v8"); got != "linux-arm64-v8" {
		t.Fatalf("platformSlug = %q", got)
	}
}
