package transport

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/opd-ai/kpxc/interfaces"
	"github.com/sirupsen/logrus"
)

// SocketName is the file name of the KeePassXC browser socket, and the
// prefix of its Windows pipe name.
const SocketName = "org.keepassxc.KeePassXC.BrowserServer"

// flatpakSubdir is where KeePassXC 2.7.2 and later, and every Flatpak
// build, place the socket below XDG_RUNTIME_DIR.
const flatpakSubdir = "app/org.keepassxc.KeePassXC"

// ErrNoRuntimeDir is returned for Flatpak installs when XDG_RUNTIME_DIR
// is unset.
var ErrNoRuntimeDir = errors.New("XDG_RUNTIME_DIR is not set")

type pathEnv struct {
	goos   string
	getenv func(string) string
	exists func(string) bool
	home   func() (string, error)
}

func systemEnv() pathEnv {
	return pathEnv{
		goos:   runtime.GOOS,
		getenv: os.Getenv,
		exists: func(p string) bool {
			_, err := os.Stat(p)
			return err == nil
		},
		home: os.UserHomeDir,
	}
}

// SocketPath returns where the KeePassXC browser socket should be for the
// given installation kind. A non-empty override wins. On Windows the result
// is the pipe name without the \\.\pipe\ prefix.
func SocketPath(installation interfaces.Installation, override string) (string, error) {
	return resolveSocketPath(installation, override, systemEnv())
}

func resolveSocketPath(installation interfaces.Installation, override string, env pathEnv) (string, error) {
	if override != "" {
		return override, nil
	}

	var dir string
	switch env.goos {
	case "windows":
		return SocketName + "_" + env.getenv("USERNAME"), nil
	case "darwin":
		dir = env.getenv("TMPDIR")
		if dir == "" {
			dir = "/tmp"
		}
	default:
		var err error
		dir, err = unixSocketDir(installation, env)
		if err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, SocketName)
	logrus.WithFields(logrus.Fields{
		"function":     "SocketPath",
		"installation": string(installation),
		"path":         path,
	}).Debug("Resolved socket path")
	return path, nil
}

func unixSocketDir(installation interfaces.Installation, env pathEnv) (string, error) {
	switch installation {
	case interfaces.InstallationSnap:
		home, err := env.home()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "snap", "keepassxc", "common"), nil

	case interfaces.InstallationFlatpak:
		xdg := env.getenv("XDG_RUNTIME_DIR")
		if xdg == "" {
			return "", ErrNoRuntimeDir
		}
		return filepath.Join(xdg, flatpakSubdir), nil
	}

	xdg := env.getenv("XDG_RUNTIME_DIR")
	if xdg == "" {
		if tmp := env.getenv("TMPDIR"); tmp != "" {
			return tmp, nil
		}
		return "/tmp", nil
	}
	if sub := filepath.Join(xdg, flatpakSubdir); env.exists(sub) {
		return sub, nil
	}
	return xdg, nil
}
