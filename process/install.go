package process

import (
	"fmt"
	"strings"
)

// Flavor detects the OS flavor of host from /etc/os-release, preferring
// ID_LIKE over ID so that derivatives map to their parent package manager.
func Flavor(host *Host) string {
	ids := map[string]string{}
	result := Run("cat /etc/os-release | grep ^ID", host, nil, nil)
	for _, line := range strings.Split(result.Stdout, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		ids[key] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if like, ok := ids["ID_LIKE"]; ok {
		return like
	}
	if id, ok := ids["ID"]; ok {
		return id
	}
	return "unknown"
}

// InstallPackage installs packages on host with the package manager matching
// flavor ("auto" detects via /etc/os-release). An unsupported flavor is a
// configuration error.
func InstallPackage(host *Host, packages []string, flavor string) (Result, error) {
	if len(packages) == 0 {
		return Result{}, fmt.Errorf("empty package list")
	}
	packageList := strings.Join(packages, " ")

	if flavor == "" || flavor == "auto" {
		flavor = Flavor(host)
	}
	switch flavor {
	case "alpine", "alpine-edge":
		return Run(fmt.Sprintf("apk update && apk add %s", packageList), host, nil, nil), nil
	case "debian", "ubuntu":
		return Run(fmt.Sprintf("apt-get update && apt-get install -y %s", packageList), host, nil, nil), nil
	case "fedora", "centos", "rhel", "rocky":
		return Run(fmt.Sprintf("dnf install -y %s", packageList), host, nil, nil), nil
	case "arch":
		return Run(fmt.Sprintf("pacman -S --noconfirm %s", packageList), host, nil, nil), nil
	case "suse", "opensuse", "opensuse-leap", "opensuse-tumbleweed":
		return Run(fmt.Sprintf("zypper install -y %s", packageList), host, nil, nil), nil
	case "gentoo":
		return Run(fmt.Sprintf("emerge -v %s", packageList), host, nil, nil), nil
	case "macos":
		return installBrew(host, packages), nil
	}
	return Result{}, fmt.Errorf("unsupported flavor: %s", flavor)
}

func installBrew(host *Host, packages []string) Result {
	const brew = "HOMEBREW_NO_AUTO_UPDATE=1 HOMEBREW_NO_INSTALL_CLEANUP=1 brew install"

	var formulas, casks []string
	for _, pkg := range packages {
		if strings.HasPrefix(pkg, "cask:") {
			casks = append(casks, strings.TrimPrefix(pkg, "cask:"))
		} else {
			formulas = append(formulas, pkg)
		}
	}

	var result Result
	if len(formulas) > 0 {
		result = Run(fmt.Sprintf("%s %s", brew, strings.Join(formulas, " ")), host, nil, nil)
		if result.Failed() {
			return result
		}
	}
	if len(casks) > 0 {
		result = Run(fmt.Sprintf("%s --cask %s", brew, strings.Join(casks, " ")), host, nil, nil)
	}
	return result
}
