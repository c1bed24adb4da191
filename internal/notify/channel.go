// Package notify shares the most recent detected data summary between
// processes through a single file in the state directory.
package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Key names the shared detected summary.
const Key = "forecast.detected_summary"

// Notice is one detection event. ID changes for every new event, so two
// notices carrying equal summaries are still distinguishable.
type Notice struct {
	ID          string                      `json:"id"`
	PublishedAt time.Time                   `json:"published_at"`
	Summary     forecastapi.DetectedSummary `json:"summary"`
}

// Channel reads and replaces the shared notice. Writers replace the whole
// file, readers never see a partial payload.
type Channel struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) ChannelOption {
	return func(c *Channel) {
		c.logger = l
	}
}

// NewChannel creates a channel stored under stateDir.
func NewChannel(stateDir string, opts ...ChannelOption) *Channel {
	c := &Channel{dir: stateDir, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return zap.L()
}

// Path is the file backing the channel.
func (c *Channel) Path() string {
	return filepath.Join(c.dir, Key+".json")
}

// Publish replaces the shared notice with a new event for summary.
func (c *Channel) Publish(summary forecastapi.DetectedSummary) (*Notice, error) {
	n := &Notice{
		ID:          uuid.New().String(),
		PublishedAt: c.now().UTC(),
		Summary:     summary,
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, eris.Wrap(err, "notify: marshal notice")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "notify: create state dir")
	}

	tmp, err := os.CreateTemp(c.dir, "."+Key+"-*")
	if err != nil {
		return nil, eris.Wrap(err, "notify: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "notify: write notice")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "notify: close temp file")
	}
	if err := os.Rename(tmp.Name(), c.Path()); err != nil {
		return nil, eris.Wrap(err, "notify: replace notice")
	}

	c.log().Debug("notify: published detected summary", zap.String("id", n.ID))
	return n, nil
}

// Read returns the current notice. Absent and malformed payloads both read
// as nil; malformed ones are only logged at debug level.
func (c *Channel) Read() *Notice {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log().Debug("notify: read notice", zap.Error(err))
		}
		return nil
	}
	n, err := Decode(data)
	if err != nil {
		c.log().Debug("notify: discarding malformed notice", zap.Error(err))
		return nil
	}
	return n
}

// Clear removes the shared notice. Clearing an empty channel is not an error.
func (c *Channel) Clear() error {
	if err := os.Remove(c.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "notify: clear notice")
	}
	return nil
}

// Decode parses a stored payload. Besides the notice envelope it accepts a
// bare detected summary, whose identity is the hash of its bytes.
func Decode(data []byte) (*Notice, error) {
	var env struct {
		ID          string                       `json:"id"`
		PublishedAt time.Time                    `json:"published_at"`
		Summary     *forecastapi.DetectedSummary `json:"summary"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "notify: decode payload")
	}
	if env.Summary != nil {
		if env.ID == "" {
			return nil, eris.New("notify: notice without id")
		}
		return &Notice{ID: env.ID, PublishedAt: env.PublishedAt, Summary: *env.Summary}, nil
	}

	var bare forecastapi.DetectedSummary
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, eris.Wrap(err, "notify: decode summary")
	}
	if len(bare.Columns) == 0 && bare.DateColumn == "" {
		return nil, eris.New("notify: payload is not a detected summary")
	}
	sum := sha256.Sum256(data)
	return &Notice{ID: "sha256:" + hex.EncodeToString(sum[:]), Summary: bare}, nil
}
