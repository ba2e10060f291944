package vwbuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// prerequisitePackages is the fixed list of native build prerequisites:
// compiler, linker toolchain, version control, pkg-config, the client
// development libraries vaultwarden links against, zlib and the CA bundle.
var prerequisitePackages = []string{
	"gcc",
	"binutils",
	"git",
	"pkg-config",
	"libssl-dev",
	"libmariadb-dev",
	"libpq-dev",
	"zlib1g-dev",
	"ca-certificates",
}

// archiveMirrorRewrites maps the live repository URL forms to their
// archive.debian.org equivalents for end-of-life suites.
var archiveMirrorRewrites = [][2]string{
	{"https://deb.debian.org/debian", "http://archive.debian.org/debian"},
	{"http://deb.debian.org/debian", "http://archive.debian.org/debian"},
	{"http://security.debian.org", "http://archive.debian.org/debian-security"},
}

// provisionSuite installs the build prerequisites for the given suite,
// retargeting apt at the archival mirror first when the suite is end-of-life.
// Any apt failure aborts the pipeline; there is no partial-install recovery.
func provisionSuite(runner HostRunner, suite string, logger io.Writer) error {
	if _, err := runner.LookPath("apt-get"); err != nil {
		return fmt.Errorf("%w: apt-get not found; dependency provisioning requires a Debian-based host", errEnvironment)
	}

	archival := suite == SuiteBuster
	retargeted := false
	if archival {
		if runner.Euid() == 0 {
			cPrintf(logger, colArrow, "-> ")
			cPrintf(logger, colSuccess, "Retargeting apt at archive.debian.org for %s\n", suite)
			if err := retargetArchiveRepos(); err != nil {
				return err
			}
			retargeted = true
		} else {
			cPrintf(logger, colArrow, "-> ")
			cPrintf(logger, colWarn,
				"Warning: %s repositories are archived but vwbuild is not running as root; skipping apt retarget. Provision %s mirrors manually if the install fails.\n",
				suite, suite)
		}
	}

	cPrintf(logger, colArrow, "-> ")
	cPrintln(logger, colSuccess, "Refreshing package index")
	updateArgs := []string{"update"}
	if retargeted {
		// Archived repositories cannot renew their Release validity window.
		updateArgs = append(updateArgs, "-o", "Acquire::Check-Valid-Until=false")
	}
	if err := runner.Run(exec.Command("apt-get", updateArgs...)); err != nil {
		return fmt.Errorf("%w: apt-get update: %v", errExternalTool, err)
	}

	cPrintf(logger, colArrow, "-> ")
	cPrintf(logger, colSuccess, "Installing build prerequisites: %s\n", strings.Join(prerequisitePackages, " "))
	installArgs := append([]string{"install", "-y", "--no-install-recommends"}, prerequisitePackages...)
	installCmd := exec.Command("apt-get", installArgs...)
	installCmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	if err := runner.Run(installCmd); err != nil {
		return fmt.Errorf("%w: apt-get install: %v", errExternalTool, err)
	}
	return nil
}

// retargetArchiveRepos rewrites the apt source entries to the archival mirror
// and relaxes Release validity checks for it. The relaxation lives in a
// dedicated apt.conf.d snippet so it never leaks into non-archival suites.
// Caller must already have verified root privileges.
func retargetArchiveRepos() error {
	data, err := os.ReadFile(aptSourcesList)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", errExternalTool, aptSourcesList, err)
	}

	content := string(data)
	for _, rw := range archiveMirrorRewrites {
		content = strings.ReplaceAll(content, rw[0], rw[1])
	}

	tmpFile := aptSourcesList + ".vwbuild.tmp"
	if err := os.WriteFile(tmpFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: failed to stage rewritten sources.list: %v", errExternalTool, err)
	}
	if err := os.Rename(tmpFile, aptSourcesList); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("%w: failed to update %s: %v", errExternalTool, aptSourcesList, err)
	}

	snippet := "Acquire::Check-Valid-Until \"false\";\n" +
		"Acquire::AllowInsecureRepositories \"true\";\n"
	if err := os.WriteFile(aptConfSnippet, []byte(snippet), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", errExternalTool, aptConfSnippet, err)
	}
	return nil
}
