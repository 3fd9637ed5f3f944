package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.MaxConcurrent < 1 {
		return errors.New("render.max_concurrent must be at least 1")
	}
	if c.Render.MaxQueueDepth < 0 {
		return errors.New("render.max_queue_depth must not be negative")
	}
	if c.Render.TimeoutSeconds < 1 {
		return errors.New("render.timeout_seconds must be at least 1")
	}
	if c.Render.WorkspaceCeilingMiB < 0 {
		return errors.New("render.workspace_ceiling_mib must not be negative")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return fmt.Errorf("render.crf must be between 0 and 51, got %d", c.Render.CRF)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
