package firefox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lotas/tabtree/internal/types"
)

// ErrNoSession is returned when no profile has a session file to read.
var ErrNoSession = errors.New("no Firefox profile with a session file")

// sessionCandidates are the session files Firefox writes, relative to the
// profile directory. recovery is rewritten while Firefox runs, previous is
// the last closed session and sessionstore is left after a clean shutdown.
var sessionCandidates = []string{
	filepath.Join("sessionstore-backups", "recovery.jsonlz4"),
	filepath.Join("sessionstore-backups", "previous.jsonlz4"),
	"sessionstore.jsonlz4",
}

// FindFirefoxDir returns the directory holding profiles.ini, or "" when
// none is known for this platform. The snap package location is tried on
// Linux when the classic one is missing.
func FindFirefoxDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		classic := filepath.Join(home, ".mozilla", "firefox")
		snap := filepath.Join(home, "snap", "firefox", "common", ".mozilla", "firefox")
		if _, err := os.Stat(filepath.Join(classic, "profiles.ini")); err != nil {
			if _, err := os.Stat(filepath.Join(snap, "profiles.ini")); err == nil {
				return snap
			}
		}
		return classic
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Mozilla", "Firefox")
		}
	}
	return ""
}

// SessionFile returns the most recently written session file of a profile
// directory, or "" when it has none. Equal modification times keep the
// candidate order.
func SessionFile(profileDir string) string {
	best := ""
	var bestInfo os.FileInfo
	for _, rel := range sessionCandidates {
		path := filepath.Join(profileDir, rel)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		if bestInfo == nil || info.ModTime().After(bestInfo.ModTime()) {
			best, bestInfo = path, info
		}
	}
	return best
}

// ParseProfilesINI reads profiles.ini. Relative paths are resolved against
// firefoxDir and every profile gets its session file, if any.
func ParseProfilesINI(iniPath, firefoxDir string) ([]types.Profile, error) {
	f, err := os.Open(iniPath)
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	profiles, err := parseProfiles(f, firefoxDir)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i].SessionFile = SessionFile(profiles[i].Path)
	}
	return profiles, nil
}

func parseProfiles(r io.Reader, firefoxDir string) ([]types.Profile, error) {
	var profiles []types.Profile
	var current *types.Profile
	relative := false

	flush := func() {
		if current == nil || current.Path == "" {
			return
		}
		if relative {
			current.Path = filepath.Join(firefoxDir, filepath.FromSlash(current.Path))
		}
		profiles = append(profiles, *current)
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			current, relative = nil, false
			if strings.HasPrefix(line[1:len(line)-1], "Profile") {
				current = &types.Profile{}
			}
			continue
		}
		if current == nil {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			current.Name = value
		case "Path":
			current.Path = value
		case "IsRelative":
			relative = value == "1"
		case "Default":
			current.IsDefault = value == "1"
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}
	flush()
	return profiles, nil
}

// DiscoverProfiles lists the profiles under dir, or under FindFirefoxDir
// when dir is empty.
func DiscoverProfiles(dir string) ([]types.Profile, error) {
	if dir == "" {
		dir = FindFirefoxDir()
	}
	if dir == "" {
		return nil, fmt.Errorf("could not find Firefox directory for %s", runtime.GOOS)
	}
	return ParseProfilesINI(filepath.Join(dir, "profiles.ini"), dir)
}

// SelectProfile picks the profile an offline export reads. A non-empty
// name matches a profile name or its directory name and must be readable.
// Without a name the default profile wins when readable, then the first
// readable one.
func SelectProfile(profiles []types.Profile, name string) (types.Profile, error) {
	if name != "" {
		for _, p := range profiles {
			if p.Name != name && filepath.Base(p.Path) != name {
				continue
			}
			if !p.Readable() {
				return types.Profile{}, fmt.Errorf("profile %q has no session file", name)
			}
			return p, nil
		}
		return types.Profile{}, fmt.Errorf("profile %q not found", name)
	}

	var fallback *types.Profile
	for i, p := range profiles {
		if !p.Readable() {
			continue
		}
		if p.IsDefault {
			return p, nil
		}
		if fallback == nil {
			fallback = &profiles[i]
		}
	}
	if fallback == nil {
		return types.Profile{}, ErrNoSession
	}
	return *fallback, nil
}
