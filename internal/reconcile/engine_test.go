package reconcile_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/imagectl/imagectl/internal/podman"
	"github.com/imagectl/imagectl/internal/reconcile"
	"github.com/imagectl/imagectl/pkg/executer"
	"github.com/imagectl/imagectl/pkg/log"
)

func newTestEngine(t *testing.T) (*reconcile.Engine, *executer.MockExecuter) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockExec := executer.NewMockExecuter(ctrl)
	return reconcile.NewEngine(log.NewPrefixLogger("engine"), mockExec), mockExec
}

func TestPresentAlreadyExists(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa","Architecture":"amd64"}]`, "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "nginx",
		Desired: reconcile.Present{Pull: true},
	})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Empty(t, result.Actions)
	require.Len(t, result.Images, 1)
	require.Len(t, result.Commands, 2)
}

func TestPresentPullsMissingImage(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "nginx:latest").
		Return("", "", 1)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "pull", "nginx:latest", "-q").
		Return("sha256:resolved\n", "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "sha256:resolved", "--format", "json").
		Return(`[{"Digest":"sha256:bbb","Architecture":"amd64"}]`, "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "nginx",
		Desired: reconcile.Present{Pull: true},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Pulled image nginx:latest"}, result.Actions)
	require.Len(t, result.Images, 1)
}

func TestPresentPullDisabled(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "nginx:latest").
		Return("", "", 1)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "pull", "nginx:latest", "-q").
		Return("", "access denied", 125)

	_, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "nginx",
		Desired: reconcile.Present{Pull: false},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "image pull is disabled")
}

func TestPresentCheckMode(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "nginx:latest").
		Return("", "", 1)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:      "nginx",
		CheckMode: true,
		Desired:   reconcile.Present{Pull: true},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Pulled image nginx:latest"}, result.Actions)
	require.Len(t, result.Commands, 2)
}

func TestPresentForceRepullSameDigest(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa","Architecture":"amd64"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "pull", "nginx:latest", "-q").
		Return("sha256:resolved\n", "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "sha256:resolved", "--format", "json").
		Return(`[{"Digest":"sha256:aaa","Architecture":"amd64"}]`, "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "nginx",
		Desired: reconcile.Present{Pull: true, Force: true},
	})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Equal(t, []string{"Pulled image nginx:latest"}, result.Actions)
}

func TestBuildMissingImage(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "app:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "app:latest").
		Return("", "", 1)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "build", "-t", "app:latest", "--format", "oci", "--rm", "/src").
		Return("STEP 1: FROM alpine\n--> abc123\n", "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "abc123", "--format", "json").
		Return(`[{"Digest":"sha256:ccc","Architecture":"amd64"}]`, "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name: "app",
		Desired: reconcile.Build{
			Path:    "/src",
			Options: podman.DefaultBuildOptions(),
		},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Built image app:latest from /src"}, result.Actions)
	require.Contains(t, result.Stdout, "--> abc123")
}

func TestBuildWithoutPath(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "app:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "app:latest").
		Return("", "", 1)

	_, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "app",
		Desired: reconcile.Build{Options: podman.DefaultBuildOptions()},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, reconcile.ErrInvalidConfig)
}

func TestBuildFallsBackToContainerFileDir(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	opts := podman.DefaultBuildOptions()
	opts.ContainerFile = filepath.Join("/src", "Containerfile")

	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "app:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "app:latest").
		Return("", "", 1)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "build", "-t", "app:latest",
		"--format", "oci", "--rm", "--file", "/src/Containerfile", "/src").
		Return("--> abc123\n", "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "abc123", "--format", "json").
		Return(`[{"Digest":"sha256:ccc"}]`, "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "app",
		Desired: reconcile.Build{Options: opts},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Built image app:latest from /src"}, result.Actions)
}

func TestPushAlwaysChanged(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa","Architecture":"amd64"}]`, "", 0).Times(2)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "push", "nginx:latest", "quay.io/org/nginx:latest").
		Return("Writing manifest\n", "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name: "nginx",
		Desired: reconcile.Present{
			Pull: true,
			Push: &podman.PushOptions{Dest: "quay.io/org"},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Pushed image nginx:latest to quay.io/org/nginx:latest"}, result.Actions)
	require.Contains(t, result.Stdout, "Writing manifest")
}

func TestAbsentRemovesByName(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "rmi", "nginx:latest", "--force").
		Return("untagged nginx:latest", "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "nginx",
		Desired: reconcile.Absent{Force: true},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Removed image nginx"}, result.Actions)
	require.Equal(t, []podman.Image{{"state": "Deleted"}}, result.Images)
}

func TestAbsentRemovesByID(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "abc123:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "abc123:latest").
		Return("", "", 1)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "--quiet", "--no-trunc").
		Return("sha256:abc123def456\n", "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "rmi", "abc123").
		Return("deleted abc123def456", "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "abc123",
		Desired: reconcile.Absent{},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Removed image with id abc123:latest"}, result.Actions)
}

func TestAbsentMissingIsNoop(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "nginx:latest").
		Return("", "", 1)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "--quiet", "--no-trunc").
		Return("sha256:fff000\n", "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:    "nginx",
		Desired: reconcile.Absent{},
	})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Empty(t, result.Actions)
}

func TestAbsentCheckMode(t *testing.T) {
	engine, mockExec := newTestEngine(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa"}]`, "", 0)

	result, err := engine.Reconcile(context.Background(), reconcile.Config{
		Name:      "nginx",
		CheckMode: true,
		Desired:   reconcile.Absent{},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Len(t, result.Commands, 2)
}

func TestQuadletWrite(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := t.TempDir()

	cfg := reconcile.Config{
		Name:    "quay.io/app",
		Tag:     "v1",
		Desired: reconcile.Quadlet{Dir: dir, Options: []string{"Variant=arm/v7"}},
	}

	result, err := engine.Reconcile(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"Wrote quadlet file " + filepath.Join(dir, "app.image")}, result.Actions)

	// second run finds identical content on disk
	result, err = engine.Reconcile(context.Background(), cfg)
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Empty(t, result.Actions)
}
