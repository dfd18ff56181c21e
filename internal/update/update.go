// Package update checks GitHub releases for a newer engine build and
// can swap the running binary in place.
package update

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

const defaultAPIBase = "https://api.github.com"

// ReleaseInfo describes the latest published release relative to the
// running version.
type ReleaseInfo struct {
	Version  string `json:"version"`
	Notes    string `json:"notes,omitempty"`
	URL      string `json:"url,omitempty"`
	AssetURL string `json:"asset_url,omitempty"`
	Newer    bool   `json:"newer"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

type Updater struct {
	owner   string
	repo    string
	current string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(owner, repo, currentVersion string, logger *slog.Logger) *Updater {
	return &Updater{
		owner:   owner,
		repo:    repo,
		current: currentVersion,
		baseURL: defaultAPIBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Check fetches the latest release and reports whether it is newer than
// the running version.
func (u *Updater) Check(ctx context.Context) (*ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", u.baseURL, u.owner, u.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release info: %w", err)
	}

	info := &ReleaseInfo{
		Version: strings.TrimPrefix(release.TagName, "v"),
		Notes:   release.Body,
		URL:     release.HTMLURL,
		Newer:   CompareVersions(release.TagName, u.current) > 0,
	}

	suffix := fmt.Sprintf("%s-%s.tar.xz", runtime.GOOS, runtime.GOARCH)
	for _, asset := range release.Assets {
		if strings.HasSuffix(asset.Name, suffix) {
			info.AssetURL = asset.BrowserDownloadURL
			break
		}
	}

	u.logger.Info("update check",
		"current", u.current,
		"latest", info.Version,
		"newer", info.Newer)
	return info, nil
}

// Apply downloads the release asset for this platform and atomically
// replaces the running binary. The caller restarts the process.
func (u *Updater) Apply(ctx context.Context, info *ReleaseInfo) error {
	if info == nil || !info.Newer {
		return errors.New("no newer release to apply")
	}
	if runtime.GOOS == "windows" {
		return errors.New("self-update is not supported on windows")
	}
	if info.AssetURL == "" {
		return fmt.Errorf("release %s has no asset for %s/%s", info.Version, runtime.GOOS, runtime.GOARCH)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate running binary: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "clipflow-update-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "release.tar.xz")
	if err := u.download(ctx, info.AssetURL, archivePath); err != nil {
		return err
	}

	extracted, err := extractTarXz(archivePath, tmpDir, filepath.Base(exe))
	if err != nil {
		return err
	}

	if err := replaceBinary(exe, extracted); err != nil {
		return err
	}

	u.logger.Info("update applied", "version", info.Version, "binary", exe)
	return nil
}

func (u *Updater) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download release asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("asset download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return out.Close()
}

// extractTarXz pulls the named binary out of the archive into destDir.
func extractTarXz(archivePath, destDir, wantName string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to open xz stream: %w", err)
	}

	tarReader := tar.NewReader(xzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != wantName {
			continue
		}

		outPath := filepath.Join(destDir, wantName)
		out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, tarReader); err != nil {
			out.Close()
			return "", fmt.Errorf("failed to extract %s: %w", wantName, err)
		}
		if err := out.Close(); err != nil {
			return "", err
		}
		return outPath, nil
	}
	return "", fmt.Errorf("binary %q not found in archive", wantName)
}

// replaceBinary swaps newPath into oldPath's place, keeping a .old
// backup to roll back if the final rename fails.
func replaceBinary(oldPath, newPath string) error {
	backup := oldPath + ".old"
	if err := os.Rename(oldPath, backup); err != nil {
		return fmt.Errorf("failed to back up current binary: %w", err)
	}
	if err := os.Rename(newPath, oldPath); err != nil {
		os.Rename(backup, oldPath)
		return fmt.Errorf("failed to install new binary: %w", err)
	}
	if err := os.Chmod(oldPath, 0755); err != nil {
		return fmt.Errorf("failed to set binary permissions: %w", err)
	}
	os.Remove(backup)
	return nil
}

// CompareVersions compares dotted numeric versions component-wise.
// Missing trailing components count as zero, so "1.2" equals "1.2.0"
// and "2.0" is newer than "1.9.9". A leading v is ignored.
func CompareVersions(a, b string) int {
	aParts := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bParts := strings.Split(strings.TrimPrefix(b, "v"), ".")

	n := len(aParts)
	if len(bParts) > n {
		n = len(bParts)
	}

	for i := 0; i < n; i++ {
		var ai, bi int
		if i < len(aParts) {
			ai, _ = strconv.Atoi(aParts[i])
		}
		if i < len(bParts) {
			bi, _ = strconv.Atoi(bParts[i])
		}
		if ai < bi {
			return -1
		}
		if ai > bi {
			return 1
		}
	}
	return 0
}
