package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/pkg/logger"

	"go.uber.org/zap"
)

// Binaries ffmpeg / ffprobe executables, plain names are looked up in PATH
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// 這兩個變數會在測試時被覆蓋
var (
	Transcode = transcodeMP4
	Probe     = probeMeta
)

// TranscodedPath <input without ext>.transcoded.mp4
func TranscodedPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".transcoded.mp4"
}

// transcodeMP4 將 inputPath 轉成 H.264/AAC faststart mp4，輸出到 outputPath
func transcodeMP4(ctx context.Context, bin Binaries, inputPath, outputPath string) error {
	cmdArgs := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "28",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}
	logger.Log.Debug("run ffmpeg", zap.String("bin", bin.FFmpeg), zap.Strings("args", cmdArgs))
	cmd := exec.CommandContext(ctx, bin.FFmpeg, cmdArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %v, output: %s", err, tail(output, 2048))
	}
	return nil
}

// probeMeta ffprobe 讀取長度與解析度，輸出無法解析時回傳空 meta
func probeMeta(ctx context.Context, bin Binaries, path string) (domain.ProbeMeta, error) {
	cmdArgs := []string{"-v", "error", "-print_format", "json", "-show_streams", "-show_format", path}
	cmd := exec.CommandContext(ctx, bin.FFprobe, cmdArgs...)
	output, err := cmd.Output()
	if err != nil {
		return domain.ProbeMeta{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeOutput(output), nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     *int   `json:"width"`
		Height    *int   `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(raw []byte) domain.ProbeMeta {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Log.Warn("parse ffprobe output failed", zap.Error(err))
		return domain.ProbeMeta{}
	}

	var meta domain.ProbeMeta
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			break
		}
	}
	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			meta.DurationSec = &d
		}
	}
	return meta
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
