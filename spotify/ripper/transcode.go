package ripper

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Encoder turns a raw vorbis stream into an MP3 file on disk.
type Encoder interface {
	EncodeMP3(ctx context.Context, src []byte, dst string) error
}

type FFmpegEncoder struct{}

func NewFFmpegEncoder() *FFmpegEncoder {
	return &FFmpegEncoder{}
}

func (e *FFmpegEncoder) EncodeMP3(ctx context.Context, src []byte, dst string) error {
	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "ogg",
		"-i", "-",
		"-codec:a", "libmp3lame",
		"-qscale:a", "0",
		dst,
	)

	cmd.Stdin = bytes.NewReader(src)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); nil != err {
		if ctxErr := ctx.Err(); nil != ctxErr {
			return ctxErr
		}

		return fmt.Errorf("failed to run ffmpeg command: %v: %s", err, stderr.String())
	}

	return nil
}
