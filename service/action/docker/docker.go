// Package docker implements the container management actions: image
// builds, registry auth, container and network lifecycle, and command
// execution inside running containers.
package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluish-run/bluish/node"
	"github.com/bluish-run/bluish/process"
)

func buildListOpt(opt string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, opt+" "+item)
	}
	return " " + strings.Join(parts, " ")
}

func buildOpt(opt, value string) string {
	if value == "" {
		return ""
	}
	return " " + opt + " " + value
}

func buildFlag(flag string, value bool) string {
	if !value {
		return ""
	}
	return " " + flag
}

// isValidID reports whether a string looks like a docker object id: a 12 or
// 64 character lower-case hex digest.
func isValidID(id string) bool {
	if len(id) != 12 && len(id) != 64 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ps resolves a container by name or id using docker ps, including stopped
// containers.
func ps(ctx context.Context, step *node.Step, name, id string) (process.Result, error) {
	filter := "id=" + id
	if name != "" {
		filter = "name=" + name
	}
	return step.Job().Exec(ctx, fmt.Sprintf("docker ps -f %s --all --quiet", filter), &step.Node, nil, "", false)
}

func targetDesc(name, id string) string {
	if name != "" {
		return "name " + name
	}
	return "pid " + id
}
