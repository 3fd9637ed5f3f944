package renderer

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeSettings selects the encoder options handed to the renderer.
type EncodeSettings struct {
	VideoCodec string
	Preset     string
	CRF        int
}

// BuildArgs assembles the renderer argv for burning subtitlePath into
// inputPath, writing outputPath. fontsDir is optional. The result is always a
// discrete argument list so overlay content can never reach a shell.
func BuildArgs(inputPath, subtitlePath, fontsDir, outputPath string, settings EncodeSettings) []string {
	filter := fmt.Sprintf("ass=%s", escapeFilterPath(subtitlePath))
	if strings.TrimSpace(fontsDir) != "" {
		filter = fmt.Sprintf("ass=%s:fontsdir=%s", escapeFilterPath(subtitlePath), escapeFilterPath(fontsDir))
	}

	codec := settings.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	preset := settings.Preset
	if preset == "" {
		preset = "veryfast"
	}
	crf := settings.CRF
	if crf <= 0 {
		crf = 23
	}

	return []string{
		"-y",
		"-nostdin",
		"-i", inputPath,
		"-vf", filter,
		"-c:v", codec,
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-c:a", "copy",
		outputPath,
	}
}

// escapeFilterPath quotes characters the renderer's filter grammar treats
// specially. The path itself comes from the workspace manager, never from the
// request, but colons are legal in paths and must not split filter options.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
	return replacer.Replace(path)
}
