package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeSubtitles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FontsDir) != "" {
		if c.Paths.FontsDir, err = expandPath(c.Paths.FontsDir); err != nil {
			return fmt.Errorf("paths.fonts_dir: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Binary = strings.TrimSpace(c.Render.Binary)
	if c.Render.Binary == "" {
		c.Render.Binary = defaultRenderBinary
	}
	if c.Render.MaxConcurrent <= 0 {
		c.Render.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Render.MaxQueueDepth <= 0 {
		c.Render.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	if c.Render.KillGraceSeconds <= 0 {
		c.Render.KillGraceSeconds = defaultKillGrace
	}
	if c.Render.RetentionTTLSeconds <= 0 {
		c.Render.RetentionTTLSeconds = defaultRetentionTTL
	}
	c.Render.VideoCodec = strings.TrimSpace(c.Render.VideoCodec)
	if c.Render.VideoCodec == "" {
		c.Render.VideoCodec = defaultVideoCodec
	}
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
	if c.Render.Preset == "" {
		c.Render.Preset = defaultPreset
	}
	if c.Render.CRF <= 0 {
		c.Render.CRF = defaultCRF
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.DefaultFont = strings.TrimSpace(c.Subtitles.DefaultFont)
	if c.Subtitles.DefaultFont == "" {
		c.Subtitles.DefaultFont = defaultFont
	}
	c.Subtitles.CJKFont = strings.TrimSpace(c.Subtitles.CJKFont)
	if c.Subtitles.CJKFont == "" {
		c.Subtitles.CJKFont = defaultCJKFont
	}
	if c.Subtitles.PlayResX <= 0 {
		c.Subtitles.PlayResX = defaultPlayResX
	}
	if c.Subtitles.PlayResY <= 0 {
		c.Subtitles.PlayResY = defaultPlayResY
	}
	if c.Subtitles.FontSize <= 0 {
		c.Subtitles.FontSize = defaultFontSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
