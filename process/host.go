package process

import (
	"fmt"
	"strings"

	"github.com/bluish-run/bluish/logging"
)

// Host schemes.
const (
	SchemeSSH    = "ssh"
	SchemeDocker = "docker"
)

// Host is a resolved execution target. A nil *Host means the local machine.
type Host struct {
	Scheme string
	// Target is the ssh [user@]address or the docker container id.
	Target       string
	IdentityFile string
	// owned marks a container started by PrepareHost; only the preparing
	// scope tears it down.
	owned bool
}

func (h *Host) String() string {
	if h == nil {
		return "local"
	}
	return h.Scheme + "://" + h.Target
}

// Options carries the optional host settings accepted alongside the address.
type Options struct {
	Host         string
	IdentityFile string
	// DockerArgs are extra arguments for docker run when a container has to
	// be started (e.g. a cwd automount).
	DockerArgs []string
}

// PrepareHost resolves a host expression into an execution target. A
// docker:// expression is resolved to a running container, starting an
// ephemeral one from the image when no container matches by name or id. An
// ssh:// expression validates and passes through. Any other scheme is a
// configuration error.
func PrepareHost(opts *Options) (*Host, error) {
	if opts == nil || opts.Host == "" {
		return nil, nil
	}
	host := opts.Host
	switch {
	case strings.HasPrefix(host, "docker://"):
		target := strings.TrimPrefix(host, "docker://")
		containerID, owned, err := resolveContainer(target, opts.DockerArgs)
		if err != nil {
			return nil, err
		}
		return &Host{Scheme: SchemeDocker, Target: containerID, owned: owned}, nil
	case strings.HasPrefix(host, "ssh://"):
		return &Host{
			Scheme:       SchemeSSH,
			Target:       strings.TrimPrefix(host, "ssh://"),
			IdentityFile: opts.IdentityFile,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported host: %s", host)
	}
}

// resolveContainer finds a running container by name, then by id; when
// neither matches it starts an ephemeral container from the expression taken
// as an image reference.
func resolveContainer(target string, dockerArgs []string) (containerID string, owned bool, err error) {
	containerID = strings.TrimSpace(Run(fmt.Sprintf("docker ps -f name=%s -qa", target), nil, nil, nil).Stdout)
	if containerID == "" {
		containerID = strings.TrimSpace(Run(fmt.Sprintf("docker ps -f id=%s -qa", target), nil, nil, nil).Stdout)
	}
	if containerID != "" {
		return containerID, false, nil
	}

	logging.Infof("Preparing container %s...", target)
	command := "docker run --detach"
	if len(dockerArgs) > 0 {
		command += " " + strings.Join(dockerArgs, " ")
	}
	command += fmt.Sprintf(" %s sleep infinity", target)
	logging.Debugf(" > %s", command)
	result := Run(command, nil, nil, nil)
	if result.Failed() {
		return "", false, fmt.Errorf("could not start container %s: %s", target, result.Error())
	}
	containerID = strings.TrimSpace(result.Stdout)
	if containerID == "" {
		return "", false, fmt.Errorf("could not find container with name or id %s", target)
	}
	logging.Debugf("Container id %s", containerID)
	return containerID, true, nil
}

// CleanupHost tears down an ephemeral container. It is a no-op for local and
// SSH targets and for containers the caller does not own; stop and remove
// failures are swallowed.
func CleanupHost(host *Host) {
	if host == nil || host.Scheme != SchemeDocker || !host.owned {
		return
	}
	logging.Infof("Stopping and removing container %s...", host.Target)
	Run(fmt.Sprintf("docker stop %s", host.Target), nil, nil, nil)
	Run(fmt.Sprintf("docker rm %s", host.Target), nil, nil, nil)
}
