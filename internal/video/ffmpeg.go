package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Options configures an FFmpegSource.
type Options struct {
	// AnalysisWidth and AnalysisHeight set the working resolution for
	// Frame. Fingerprint signals are computed at this size; a fixed size
	// keeps them comparable across frames regardless of source
	// resolution.
	AnalysisWidth  int
	AnalysisHeight int
}

func (o *Options) fillDefaults() {
	if o.AnalysisWidth <= 0 {
		o.AnalysisWidth = 640
	}
	if o.AnalysisHeight <= 0 {
		o.AnalysisHeight = 480
	}
}

// FFmpegSource decodes frames by seeking with ffmpeg one frame at a time.
// Each extraction runs an independent ffmpeg process writing to a unique
// temp file, so concurrent Frame calls are safe.
type FFmpegSource struct {
	ffmpegPath string
	tempDir    string
	opts       Options
	info       Info
}

// Open probes the video and prepares a frame source. Returns an error
// wrapping ErrUnreadable if the file cannot be probed.
func Open(path string, opts Options) (*FFmpegSource, error) {
	opts.fillDefaults()

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	info, err := probe(ffmpegPath, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	tempDir := filepath.Join(os.TempDir(), "slidecap-frames", uuid.New().String())
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &FFmpegSource{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
		opts:       opts,
		info:       info,
	}, nil
}

func (s *FFmpegSource) Info() Info {
	return s.info
}

func (s *FFmpegSource) Frame(ctx context.Context, index int) (*Frame, error) {
	scale := fmt.Sprintf("scale=%d:%d", s.opts.AnalysisWidth, s.opts.AnalysisHeight)
	img, err := s.extract(ctx, index, scale)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Index:     index,
		Timestamp: s.timestamp(index),
		Image:     img,
	}, nil
}

func (s *FFmpegSource) FullFrame(ctx context.Context, index int) (image.Image, error) {
	return s.extract(ctx, index, "")
}

func (s *FFmpegSource) Close() error {
	return os.RemoveAll(s.tempDir)
}

func (s *FFmpegSource) timestamp(index int) float64 {
	if s.info.FPS <= 0 {
		return 0
	}
	return float64(index) / s.info.FPS
}

func (s *FFmpegSource) extract(ctx context.Context, index int, scaleFilter string) (image.Image, error) {
	if index < 0 || index >= s.info.TotalFrames {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", index, s.info.TotalFrames)
	}

	tempFile := filepath.Join(s.tempDir, fmt.Sprintf("frame_%08d_%s.jpg", index, uuid.New().String()[:8]))
	defer os.Remove(tempFile)

	args := []string{
		"-ss", fmt.Sprintf("%.4f", s.timestamp(index)),
		"-i", s.info.Path,
		"-vframes", "1",
	}
	if scaleFilter != "" {
		args = append(args, "-vf", scaleFilter)
	}
	args = append(args, "-q:v", "2", "-f", "mjpeg", tempFile)

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Printf("ffmpeg stderr: %s", stderr.String())
		return nil, fmt.Errorf("failed to extract frame %d: %w", index, err)
	}

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, nil
}

// probe gathers stream metadata, preferring ffprobe and falling back to
// parsing ffmpeg's banner output for the duration.
func probe(ffmpegPath, path string) (Info, error) {
	info := Info{Path: path}

	if ffprobePath, err := exec.LookPath("ffprobe"); err == nil {
		cmd := exec.Command(ffprobePath,
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream=avg_frame_rate,nb_frames",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1",
			path)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			for _, line := range strings.Split(stdout.String(), "\n") {
				key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
				if !ok {
					continue
				}
				switch key {
				case "avg_frame_rate":
					if fps, err := parseRational(value); err == nil && fps > 0 {
						info.FPS = fps
					}
				case "nb_frames":
					if n, err := strconv.Atoi(value); err == nil && n > 0 {
						info.TotalFrames = n
					}
				case "duration":
					if d, err := strconv.ParseFloat(value, 64); err == nil && d > 0 {
						info.Duration = d
					}
				}
			}
		}
	}

	if info.Duration <= 0 {
		duration, err := durationFromFFmpeg(ffmpegPath, path)
		if err != nil {
			return Info{}, err
		}
		info.Duration = duration
	}

	if info.FPS <= 0 {
		info.FPS = 25.0
	}
	if info.TotalFrames <= 0 {
		info.TotalFrames = int(math.Floor(info.Duration * info.FPS))
	}
	if info.TotalFrames <= 0 {
		return Info{}, fmt.Errorf("video has no frames")
	}
	return info, nil
}

// parseRational parses ffprobe rate strings like "30000/1001" or "25".
func parseRational(s string) (float64, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if !ok {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}

func durationFromFFmpeg(ffmpegPath, path string) (float64, error) {
	cmd := exec.Command(ffmpegPath, "-i", path, "-f", "null", "-")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	output := stderr.String()
	durationPrefix := "Duration: "
	startIndex := strings.Index(output, durationPrefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(durationPrefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	return parseClockDuration(output[startIndex : startIndex+endIndex])
}

// parseClockDuration parses "HH:MM:SS.ss" into seconds.
func parseClockDuration(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}
