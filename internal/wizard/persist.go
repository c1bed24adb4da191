package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// DefaultExportName is used when the service does not name the download.
const DefaultExportName = "project_config.yaml"

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "config"
	}
	return slug
}

// DefaultConfigPath is the path the service uses for a config saved at t.
func DefaultConfigPath(env model.Environment, name string, t time.Time) string {
	return fmt.Sprintf("configs/%s/project_config_%s_%s.yaml", env, Slugify(name), t.UTC().Format("20060102T150405Z"))
}

// Export is a downloadable configuration file.
type Export struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// Confirm saves the draft from the review step. On success the machine
// moves to the success step and then reloads history; a failed reload is
// reported in state without undoing the save.
func (m *Machine) Confirm(ctx context.Context) (*forecastapi.SaveResult, error) {
	m.mu.Lock()
	if m.step != StepReview {
		m.mu.Unlock()
		return nil, ErrNotReviewing
	}
	if m.saving {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.saving = true
	draft, env, role := m.draft, m.env, m.role
	m.mu.Unlock()

	res, err := m.api.SaveConfig(ctx, draft.Document(), string(env), string(role))

	m.mu.Lock()
	m.saving = false
	if err != nil {
		if !forecastapi.IsCanceled(err) {
			m.errMsg = err.Error()
		}
		m.mu.Unlock()
		return nil, err
	}
	info := m.buildSaveInfo(draft, env, res)
	saved := draft
	m.lastSaved = &saved
	m.saveInfo = &info
	m.warnings = append([]string(nil), res.Warnings...)
	m.errMsg = ""
	m.step = StepSuccess
	m.mu.Unlock()

	m.log().Info("wizard: saved config",
		zap.String("path", info.Path),
		zap.String("env", string(env)),
		zap.Int("warnings", len(res.Warnings)),
	)

	m.recordSnapshot(ctx, saved, info, env, role, res.Warnings)

	if err := m.RefreshHistory(ctx); err != nil {
		m.log().Warn("wizard: history refresh after save failed", zap.Error(err))
	}
	return res, nil
}

func (m *Machine) buildSaveInfo(d Draft, env model.Environment, res *forecastapi.SaveResult) SaveInfo {
	now := m.now().UTC()
	info := SaveInfo{Path: res.Path, SavedAt: now, SavedBy: d.Meta.CreatedBy}
	if res.Config != nil {
		if t, err := time.Parse(time.RFC3339Nano, res.Config.Meta.CreatedAt); err == nil {
			info.SavedAt = t
		}
		if res.Config.Meta.CreatedBy != "" {
			info.SavedBy = res.Config.Meta.CreatedBy
		}
	}
	if info.Path == "" {
		info.Path = DefaultConfigPath(env, d.Meta.Name, info.SavedAt)
	}
	return info
}

func (m *Machine) recordSnapshot(ctx context.Context, d Draft, info SaveInfo, env model.Environment, role model.Role, warnings []string) {
	if m.snapshots == nil {
		return
	}
	doc, err := EncodeYAML(d)
	if err != nil {
		m.log().Warn("wizard: encode snapshot", zap.Error(err))
		return
	}
	_, err = m.snapshots.SaveSnapshot(context.WithoutCancel(ctx), model.ConfigSnapshot{
		Env:      env,
		Path:     info.Path,
		Name:     d.Meta.Name,
		SavedBy:  info.SavedBy,
		Role:     role,
		Document: doc,
		Warnings: warnings,
		SavedAt:  info.SavedAt,
	})
	if err != nil {
		m.log().Warn("wizard: record snapshot", zap.String("path", info.Path), zap.Error(err))
	}
}

// Download fetches the last saved configuration, or the service default
// when nothing was saved in this session.
func (m *Machine) Download(ctx context.Context) (Export, error) {
	m.mu.Lock()
	env := m.env
	var p string
	if m.saveInfo != nil {
		p = m.saveInfo.Path
	}
	m.mu.Unlock()

	res, err := m.api.DownloadConfig(ctx, string(env), ConfigRootPath(p))
	if err != nil {
		m.fail(err)
		return Export{}, err
	}
	return ExportOf(res)
}

// configRootDir is the service's config root as it appears in stored paths.
const configRootDir = "configs/"

// ConfigRootPath converts a stored path such as configs/dev/x.yaml, as
// returned by save and history, into the configs-relative form that
// download_config resolves.
func ConfigRootPath(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(strings.TrimPrefix(p, "./")), configRootDir)
}

// ExportOf turns a stored configuration into a YAML file. JSON-only
// responses are converted.
func ExportOf(res *forecastapi.ConfigExport) (Export, error) {
	name := DefaultExportName
	if res.Path != "" {
		name = path.Base(res.Path)
	}
	content := []byte(res.YAML)
	if len(content) == 0 {
		var err error
		content, err = jsonToYAML(res.Config)
		if err != nil {
			return Export{}, err
		}
	}
	return Export{Filename: name, Content: content}, nil
}

func jsonToYAML(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, eris.New("wizard: download has no content")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "wizard: decode download")
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "wizard: encode download")
	}
	return out, nil
}

// UploadPromoCalendar uploads a promo calendar and points the draft at
// the stored file.
func (m *Machine) UploadPromoCalendar(ctx context.Context, filename string, content io.Reader) (*forecastapi.PromoPreview, error) {
	m.mu.Lock()
	env, role := m.env, m.role
	m.mu.Unlock()

	res, err := m.api.UploadPromoCalendar(ctx, string(env), string(role), filename, content)
	if err != nil {
		m.fail(err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.promo = res
	if res.Path != "" {
		m.draft.Forecast.PromoCalendarPath = res.Path
		m.revision++
	}
	m.errMsg = ""
	return res, nil
}
