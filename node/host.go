package node

import (
	"github.com/bluish-run/bluish/model"
	"github.com/bluish-run/bluish/process"
)

const hostAttr = "runs_on_host"

// prepareHost binds the node's runs_on target for the duration of its
// dispatch. A node without its own runs_on pins the inherited host so that
// children resolve a stable value; a node with one provisions it (possibly
// starting a docker container) and tears it down on release unless the same
// host was already inherited.
func (n *Node) prepareHost() (func(), error) {
	inheritedValue, err := n.GetInheritedAttr(hostAttr, nil)
	if err != nil {
		return nil, err
	}
	inherited, _ := inheritedValue.(*process.Host)

	runsOnValue, err := n.GetAttr("runs_on", nil)
	if err != nil {
		return nil, err
	}
	runsOn, _ := runsOnValue.(*model.RunsOn)
	if runsOn == nil {
		n.SetAttr(hostAttr, inherited)
		return func() { n.ClearAttr(hostAttr) }, nil
	}

	target, err := n.ExpandString(runsOn.Host)
	if err != nil {
		return nil, err
	}
	host, err := process.PrepareHost(&process.Options{
		Host:         target,
		IdentityFile: runsOn.IdentityFile,
		DockerArgs:   runsOn.DockerArgs,
	})
	if err != nil {
		return nil, err
	}
	n.SetAttr(hostAttr, host)
	return func() {
		n.ClearAttr(hostAttr)
		if host != inherited {
			process.CleanupHost(host)
		}
	}, nil
}

// RunsOnHost returns the host currently bound to this node's scope, nil for
// the local machine.
func (n *Node) RunsOnHost() *process.Host {
	value, err := n.GetInheritedAttr(hostAttr, nil)
	if err != nil {
		return nil
	}
	host, _ := value.(*process.Host)
	return host
}
