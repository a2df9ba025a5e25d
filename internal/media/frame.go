package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"videochain/internal/domain"
)

// tailFraction keeps the capture off the last frames, which are often black
// or truncated in streamed encodes.
const tailFraction = 0.99

// ExtractLastFrame captures one JPEG near the end of videoPath.
func (f *FFmpeg) ExtractLastFrame(ctx context.Context, videoPath string) ([]byte, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFrameExtractionFailed, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrFrameExtractionFailed, videoPath)
	}
	duration, err := f.Probe(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFrameExtractionFailed, err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %s has zero duration", domain.ErrFrameExtractionFailed, videoPath)
	}

	out := filepath.Join(filepath.Dir(videoPath), "frame_"+uuid.NewString()+".jpg")
	defer os.Remove(out)
	offset := strconv.FormatFloat(duration*tailFraction, 'f', 3, 64)
	if _, err := f.runner.Run(ctx, f.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", offset,
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFrameExtractionFailed, err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFrameExtractionFailed, err)
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: ffmpeg produced no image", domain.ErrFrameExtractionFailed)
	}
	f.logger.Debug().Str("video", videoPath).Str("offset", offset).Int("bytes", len(data)).Msg("media: frame extracted")
	return data, nil
}
