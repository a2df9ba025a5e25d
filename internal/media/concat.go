package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"videochain/internal/domain"
)

// Concat joins paths in order into output with a stream copy. Inputs must
// share codec parameters. A single input is copied as is.
func (f *FFmpeg) Concat(ctx context.Context, paths []string, output string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no inputs", domain.ErrStitchFailed)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStitchFailed, err)
		}
	}
	if len(paths) == 1 {
		if err := copyFile(paths[0], output); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStitchFailed, err)
		}
		return nil
	}

	listPath := filepath.Join(filepath.Dir(paths[0]), "list_"+uuid.NewString()+".txt")
	if err := os.WriteFile(listPath, []byte(concatList(paths)), 0o644); err != nil {
		return fmt.Errorf("%w: write list: %v", domain.ErrStitchFailed, err)
	}
	defer os.Remove(listPath)

	if _, err := f.runner.Run(ctx, f.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		output,
	); err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("%w: %v", domain.ErrStitchFailed, err)
	}
	f.logger.Debug().Int("inputs", len(paths)).Str("output", output).Msg("media: concatenated")
	return nil
}

// concatList renders the concat demuxer script. Single quotes are closed,
// escaped and reopened.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		p = filepath.ToSlash(p)
		p = strings.ReplaceAll(p, `'`, `'\''`)
		b.WriteString("file '")
		b.WriteString(p)
		b.WriteString("'\n")
	}
	return b.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
