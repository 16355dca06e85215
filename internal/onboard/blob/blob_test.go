package blob

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "onboard"
	minioPassword = "onboard-secret"
)

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(Config{Endpoint: "localhost:9000"})
	require.Error(t, err)

	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "b", Prefix: "avatars"})
	require.NoError(t, err)
	require.Equal(t, "avatars/u1/", s.userPrefix("u1"))
}

// setupMinio starts a throwaway MinIO server and returns its host:port.
func setupMinio(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").
				WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestDeleteUserImages(t *testing.T) {
	endpoint := setupMinio(t)
	ctx := context.Background()

	s, err := New(Config{Endpoint: endpoint, AccessKey: minioUser, SecretKey: minioPassword, Bucket: "profiles"})
	require.NoError(t, err)
	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.Ping(ctx))

	put := func(userID, name string) string {
		key, err := s.PutUserImage(ctx, userID, name, strings.NewReader("png"), 3, "image/png")
		require.NoError(t, err)
		return key
	}
	put("u1", "avatar.png")
	put("u1", "thumbs/avatar-64.png")
	keep := put("u2", "avatar.png")

	legacy := "legacy/u1.png"
	_, err = s.mc.PutObject(ctx, "profiles", legacy, strings.NewReader("png"), 3, minio.PutObjectOptions{})
	require.NoError(t, err)

	n, err := s.DeleteUserImages(ctx, "u1", legacy)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// deleting again is fine
	_, err = s.DeleteUserImages(ctx, "u1", legacy)
	require.NoError(t, err)

	_, err = s.mc.StatObject(ctx, "profiles", keep, minio.StatObjectOptions{})
	require.NoError(t, err, "other users are untouched")
}
