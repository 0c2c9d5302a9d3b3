// Package syncconfig resolves which node to talk to and with which
// credentials.
//
// Settings come from three layers, strongest first: command line flags,
// the NODE and JWT environment variables, and a .syncconfig file found
// in the working directory or its parent. Finding the file in the
// parent also moves the working base there, so the tool can run from a
// subdirectory of a synced project.
package syncconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// FileName is the per-project configuration file.
const FileName = ".syncconfig"

// Settings is the resolved connection configuration.
type Settings struct {
	NodeURL string // normalized API base URL
	Token   string // bearer token, cleaned of quoting and scheme prefixes
	BaseDir string // directory holding .syncconfig, "" when none was found
}

// ErrIncomplete means no layer supplied a node URL or token.
var ErrIncomplete = errors.New("node url and jwt must be configured (flag, environment or .syncconfig)")

// Discover resolves settings, with the given flag values taking
// precedence over environment variables and the .syncconfig file.
func Discover(nodeFlag, jwtFlag string) (*Settings, error) {
	fileNode, fileJWT, baseDir, err := fromFile()
	if err != nil {
		return nil, err
	}

	node := coalesce(nodeFlag, os.Getenv("NODE"), fileNode)
	jwt := coalesce(jwtFlag, os.Getenv("JWT"), fileJWT)
	if node == "" || jwt == "" {
		return nil, ErrIncomplete
	}

	return &Settings{
		NodeURL: NormalizeURL(node),
		Token:   CleanToken(jwt),
		BaseDir: baseDir,
	}, nil
}

// fromFile loads .syncconfig from the working directory or its parent.
// A missing file is not an error; a malformed one is.
func fromFile() (node, jwt, baseDir string, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", "", err
	}
	for _, dir := range []string{cwd, filepath.Dir(cwd)} {
		path := filepath.Join(dir, FileName)
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, loadErr := ini.Load(path)
		if loadErr != nil {
			return "", "", "", fmt.Errorf("cannot parse %s: %w", path, loadErr)
		}
		section := cfg.Section(ini.DefaultSection)
		return section.Key("node").String(), section.Key("jwt").String(), dir, nil
	}
	return "", "", "", nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// CleanToken strips quoting and a bearer prefix from a token, so the
// value can be pasted from a curl example or an Authorization header.
func CleanToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, `"'`)
	lower := strings.ToLower(token)
	if strings.HasPrefix(lower, "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	return token
}

// NormalizeURL turns a bare host or node URL into the API base URL.
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/api") {
		u += "/api"
	}
	return u
}
