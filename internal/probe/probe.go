// Package probe implements the availability checks that gate engine selection.
// A probe answers one question: is this engine's runtime dependency present on
// the machine right now. Probes are read-only and never mutate anything.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Probe checks a single runtime dependency. Check returns nil when the
// dependency is satisfied, otherwise an error naming what is missing.
// Unreachability and absence are normal outcomes, not failures: Check must
// return promptly and must never panic or hang.
type Probe interface {
	Check(ctx context.Context) error
}

// Func adapts a function to the Probe interface.
type Func func(ctx context.Context) error

func (f Func) Check(ctx context.Context) error { return f(ctx) }

// Always reports the dependency as satisfied unconditionally. Used by engines
// with no external requirements.
func Always() Probe {
	return Func(func(context.Context) error { return nil })
}

// Executable checks that a named binary resolves on PATH.
func Executable(name string) Probe {
	return Func(func(context.Context) error {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s not found in PATH", name)
		}
		return nil
	})
}

// libraryDirs returns the directories searched for shared libraries:
// LD_LIBRARY_PATH entries first, then the usual linker locations.
func libraryDirs() []string {
	var dirs []string
	if ld := os.Getenv("LD_LIBRARY_PATH"); ld != "" {
		dirs = append(dirs, filepath.SplitList(ld)...)
	}
	dirs = append(dirs,
		"/usr/local/lib",
		"/usr/lib",
		"/lib",
		"/usr/lib/x86_64-linux-gnu",
		"/lib/x86_64-linux-gnu",
		"/usr/lib/aarch64-linux-gnu",
		"/usr/lib/arm-linux-gnueabihf",
	)
	return dirs
}

// Library checks that a shared library lib<name>.so[.*] is present in the
// dynamic-linker search directories. It looks at file names only; it does not
// dlopen the library.
func Library(name string) Probe {
	prefix := "lib" + name + ".so"
	return Func(func(context.Context) error {
		for _, dir := range libraryDirs() {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if n := e.Name(); n == prefix || strings.HasPrefix(n, prefix+".") {
					return nil
				}
			}
		}
		return fmt.Errorf("shared library lib%s not found", name)
	})
}

// DefaultNetworkTimeout bounds a network probe so an offline machine cannot
// stall the selection path.
const DefaultNetworkTimeout = 3 * time.Second

// Network checks outbound TCP connectivity to host (host:port). A zero
// timeout uses DefaultNetworkTimeout.
func Network(host string, timeout time.Duration) Probe {
	if timeout <= 0 {
		timeout = DefaultNetworkTimeout
	}
	return Func(func(ctx context.Context) error {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return fmt.Errorf("cannot reach %s: %w", host, err)
		}
		conn.Close()
		return nil
	})
}

// All combines probes with logical AND. Every constituent probe runs even
// after a failure so the report names each missing dependency, not just the
// first.
func All(probes ...Probe) Probe {
	return Func(func(ctx context.Context) error {
		var errs []error
		for _, p := range probes {
			if err := p.Check(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
