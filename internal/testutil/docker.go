// Package testutil holds helpers for integration tests that drive real
// Docker containers: client setup, unique container naming, and label-based
// reaping so interrupted runs never strand an Ollama container.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
)

// cleanupLabel marks containers created by this test binary. Its value is
// the test name, so each test reaps only its own containers.
const cleanupLabel = "constructosaurus.test"

// TestingT is the slice of testing.T the Docker helpers need.
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
	Helper()
}

// DockerClient connects to the local Docker daemon and registers a cleanup
// that reaps every container this test labeled. Tests skip when no daemon
// answers, so the integration suite degrades cleanly on machines without
// Docker.
func DockerClient(t TestingT) *client.Client {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		t.Skipf("docker daemon not running: %v", err)
		return nil
	}

	t.Cleanup(func() { reapContainers(t, cli) })
	return cli
}

// UniqueContainerName builds a container name no parallel test run will
// collide on: constructosaurus-test-<prefix>-<testname>-<suffix>.
func UniqueContainerName(t TestingT, prefix string) string {
	t.Helper()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("constructosaurus-test-%s-%s-%s", prefix, testNameSlug(t.Name()), suffix)
}

// ContainerLabels returns the labels that mark a container as owned by this
// test. Reaping keys on them.
func ContainerLabels(t TestingT) map[string]string {
	return map[string]string{cleanupLabel: t.Name()}
}

// reapContainers stops and removes every container labeled by this test.
func reapContainers(t TestingT, cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	owned := filters.NewArgs()
	owned.Add("label", fmt.Sprintf("%s=%s", cleanupLabel, t.Name()))

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: owned})
	if err != nil {
		t.Logf("container reap skipped, list failed: %v", err)
		return
	}

	stopTimeout := 10
	for _, c := range containers {
		name := c.ID[:12]
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		if err := cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &stopTimeout}); err != nil {
			t.Logf("failed to stop %s: %v", name, err)
		}
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			t.Logf("failed to remove %s: %v", name, err)
			continue
		}
		t.Logf("reaped container %s", name)
	}
}

// testNameSlug squeezes a test name into the character set Docker accepts in
// container names. Subtest separators become hyphens.
func testNameSlug(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '/' || r == '_' || r == '-':
			return '-'
		default:
			return -1
		}
	}, name)
	if len(slug) > 30 {
		slug = slug[:30]
	}
	return slug
}
