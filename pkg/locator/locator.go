package locator

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/flanksource/gomplate/v3"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/flanksource/sdk-installer/pkg/version"
)

// DefaultURLTemplate is the release artifact layout of the SDK
const DefaultURLTemplate = "{{.base}}/{{.tag}}/{{.name}}{{.suffix}}-{{.version}}-{{.platform}}.{{.ext}}"

// Locate produces the download target for a resolved version. An explicit URL
// is used verbatim and its format inferred from the suffix; otherwise the URL
// is rendered from the package template.
func Locate(cfg types.PackageConfig, plat platform.Platform, resolved types.ResolvedVersion, req types.InstallRequest) (types.DownloadTarget, error) {
	if explicit := req.ExplicitURL; strings.TrimSpace(explicit) != "" {
		format, err := FormatFromURL(explicit)
		if err != nil {
			return types.DownloadTarget{}, err
		}
		return types.DownloadTarget{
			URL:      explicit,
			Format:   format,
			FileName: fileName(explicit),
			Explicit: true,
		}, nil
	}

	if err := version.RequireNumeric(resolved, types.StageLocate); err != nil {
		return types.DownloadTarget{}, err
	}

	format := FormatFor(req)
	rendered, err := RenderURL(cfg, plat, resolved, req.IncludeOptionalComponent, format)
	if err != nil {
		return types.DownloadTarget{}, err
	}

	// the template is configurable, so the rendered suffix is checked again
	inferred, err := FormatFromURL(rendered)
	if err != nil {
		return types.DownloadTarget{}, err
	}
	if inferred != format {
		return types.DownloadTarget{}, pipeline.Errorf(pipeline.KindUnsupportedFormat, types.StageLocate, rendered,
			"url template produced a %s artifact, expected %s", inferred, format)
	}

	return types.DownloadTarget{
		URL:      rendered,
		Format:   format,
		FileName: fileName(rendered),
	}, nil
}

// RenderURL renders the package URL template for the given format
func RenderURL(cfg types.PackageConfig, plat platform.Platform, resolved types.ResolvedVersion, includeOptional bool, format types.PackageFormat) (string, error) {
	tmpl := cfg.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}

	platformTag := cfg.PlatformTag
	if platformTag == "" {
		platformTag = plat.Tag()
	}

	data := map[string]any{
		"base":     strings.TrimSuffix(cfg.BaseURL, "/"),
		"tag":      resolved.Tag,
		"name":     cfg.Name,
		"suffix":   OptionalSuffix(cfg, includeOptional),
		"version":  resolved.Numeric,
		"platform": platformTag,
		"ext":      format.Extension(),
		"os":       plat.OS,
		"arch":     plat.Arch,
	}

	rendered, err := gomplate.RunTemplate(data, gomplate.Template{Template: tmpl})
	if err != nil {
		return "", pipeline.NewError(pipeline.KindUnsupportedFormat, types.StageLocate, tmpl,
			fmt.Errorf("failed to render url template: %w", err))
	}
	return strings.TrimSpace(rendered), nil
}

// FormatFor picks the package format from the request: a per-user target
// installs the archive, otherwise the native package is used.
func FormatFor(req types.InstallRequest) types.PackageFormat {
	if req.PerUser() {
		return types.FormatArchive
	}
	return types.FormatNativePackage
}

// FormatFromURL infers the package format from the URL path suffix, ignoring
// case and any query string or fragment.
func FormatFromURL(rawURL string) (types.PackageFormat, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".zip":
		return types.FormatArchive, nil
	case ".msi":
		return types.FormatNativePackage, nil
	default:
		return types.FormatUnknown, pipeline.Errorf(pipeline.KindUnsupportedFormat, types.StageLocate, rawURL,
			"unsupported package format %q (expected .zip or .msi)", path.Ext(p))
	}
}

// OptionalSuffix is "" when the optional component is included and
// "-no-<component>" otherwise.
func OptionalSuffix(cfg types.PackageConfig, includeOptional bool) string {
	if includeOptional || cfg.OptionalComponent == "" {
		return ""
	}
	return "-no-" + cfg.OptionalComponent
}

// PackageDir is the install subfolder name, e.g. sensing-dev or sensing-dev-no-opencv
func PackageDir(cfg types.PackageConfig, includeOptional bool) string {
	return cfg.Name + OptionalSuffix(cfg, includeOptional)
}

// Destination decides where the package goes: the explicit install path, or
// the target user's local app-data directory.
func Destination(cfg types.PackageConfig, env types.Environment, req types.InstallRequest) types.InstallDestination {
	root := strings.TrimSpace(req.InstallPath)
	if root == "" {
		root = env.LocalAppDataFor(req.User)
	}
	return types.InstallDestination{
		Root:       root,
		PackageDir: PackageDir(cfg, req.IncludeOptionalComponent),
	}
}

func fileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return path.Base(p)
}
