// Package subtitle materializes overlay payloads into ASS subtitle files the
// external renderer burns into the output video. It owns script detection so
// CJK and right-to-left overlays pick a font with the right coverage.
package subtitle
