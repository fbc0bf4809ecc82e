package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/imagectl/imagectl/internal/podman"
	"github.com/imagectl/imagectl/internal/reconcile"
	"github.com/imagectl/imagectl/pkg/executer"
	"github.com/imagectl/imagectl/pkg/log"
)

func newTestLocator(t *testing.T) (*reconcile.Locator, *executer.MockExecuter) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockExec := executer.NewMockExecuter(ctrl)
	logger := log.NewPrefixLogger("locator")
	client := podman.NewClient(logger, mockExec)
	return reconcile.NewLocator(logger, client), mockExec
}

func TestLocateMissingImage(t *testing.T) {
	locator, mockExec := newTestLocator(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "nginx:latest").
		Return("", "", 1)

	images, err := locator.Locate(context.Background(), "nginx:latest", "")
	require.NoError(t, err)
	require.Nil(t, images)
}

func TestLocateUnlistedButExisting(t *testing.T) {
	locator, mockExec := newTestLocator(t)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
		Return(`[]`, "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "exists", "nginx:latest").
		Return("", "", 0)
	mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
		Return(`[{"Digest":"sha256:aaa","Architecture":"amd64"}]`, "", 0)

	images, err := locator.Locate(context.Background(), "nginx:latest", "")
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "sha256:aaa", images[0].Digest())
}

func TestLocateArchFilter(t *testing.T) {
	testCases := []struct {
		name     string
		arch     string
		expected int
	}{
		{
			name:     "matching arch",
			arch:     "amd64",
			expected: 1,
		},
		{
			name:     "mismatching arch",
			arch:     "arm64",
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			locator, mockExec := newTestLocator(t)
			mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "nginx:latest", "--format", "json").
				Return(`[{"Digest":"sha256:aaa"}]`, "", 0)
			mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "inspect", "nginx:latest", "--format", "json").
				Return(`[{"Digest":"sha256:aaa","Architecture":"amd64"}]`, "", 0)

			images, err := locator.Locate(context.Background(), "nginx:latest", tc.arch)
			require.NoError(t, err)
			require.Len(t, images, tc.expected)
		})
	}
}

func TestFindID(t *testing.T) {
	testCases := []struct {
		name      string
		qualified string
		ids       string
		expected  string
	}{
		{
			name:      "prefix match on stripped name",
			qualified: "abc123:latest",
			ids:       "sha256:abc123def456\nsha256:fff000\n",
			expected:  "abc123",
		},
		{
			name:      "no match",
			qualified: "nginx:latest",
			ids:       "sha256:abc123def456\n",
			expected:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			locator, mockExec := newTestLocator(t)
			mockExec.EXPECT().ExecuteWithContext(gomock.Any(), "podman", "image", "ls", "--quiet", "--no-trunc").
				Return(tc.ids, "", 0)

			id, err := locator.FindID(context.Background(), tc.qualified)
			require.NoError(t, err)
			require.Equal(t, tc.expected, id)
		})
	}
}
