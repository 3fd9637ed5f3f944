package config

const (
	defaultWorkspaceDir        = "~/.local/share/subburn/workspaces"
	defaultLogDir              = "~/.local/share/subburn/logs"
	defaultFontsDir            = ""
	defaultAPIBind             = "127.0.0.1:7823"
	defaultRenderBinary        = "ffmpeg"
	defaultMaxConcurrent       = 1
	defaultMaxQueueDepth       = 8
	defaultRenderTimeout       = 900
	defaultKillGrace           = 5
	defaultRetentionTTL        = 3600
	defaultWorkspaceCeilingMiB = 10240
	defaultVideoCodec          = "libx264"
	defaultPreset              = "veryfast"
	defaultCRF                 = 23
	defaultFont                = "Noto Sans"
	defaultCJKFont             = "Noto Sans CJK SC"
	defaultPlayResX            = 1280
	defaultPlayResY            = 720
	defaultFontSize            = 42
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
			FontsDir:     defaultFontsDir,
			APIBind:      defaultAPIBind,
		},
		Render: Render{
			Binary:              defaultRenderBinary,
			MaxConcurrent:       defaultMaxConcurrent,
			MaxQueueDepth:       defaultMaxQueueDepth,
			TimeoutSeconds:      defaultRenderTimeout,
			KillGraceSeconds:    defaultKillGrace,
			RetentionTTLSeconds: defaultRetentionTTL,
			WorkspaceCeilingMiB: defaultWorkspaceCeilingMiB,
			VideoCodec:          defaultVideoCodec,
			Preset:              defaultPreset,
			CRF:                 defaultCRF,
		},
		Subtitles: Subtitles{
			DefaultFont: defaultFont,
			CJKFont:     defaultCJKFont,
			PlayResX:    defaultPlayResX,
			PlayResY:    defaultPlayResY,
			FontSize:    defaultFontSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
