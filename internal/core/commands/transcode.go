// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file defines the transcoding stage. FFmpeg normalizes the submitted
// file into a bounded representation before upload: video is downscaled to
// a capped width and frame rate with its audio downmixed to mono at a fixed
// sample rate, and pure audio is re-encoded to compact mono AAC at the same
// rate. Transcoding failure is recoverable: the stage falls back to the
// original file with a best-guess MIME type and the job continues.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
)

// Media classes assigned by extension.
const (
	MediaClassAudio = "audio"
	MediaClassVideo = "video"
	MediaClassText  = "text"
)

const transcodeTempPrefix = "transcode-output-"

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
	".flac": true, ".ogg": true, ".opus": true, ".wma": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".srt": true, ".vtt": true,
}

// TranscodeResult is the stage output: a local path ready for upload plus
// the concrete MIME type to upload it under.
type TranscodeResult struct {
	Path       string
	MIMEType   string
	MediaClass string
	Transcoded bool // False when the stage fell back to the original file.
}

// GetTranscodeResultParameterName returns the canonical context key for
// the transcode output.
func GetTranscodeResultParameterName() string {
	return "__TRANSCODE_RESULT__"
}

// TranscodeCommand runs ffmpeg to normalize the submitted file. Declared
// degradable: the chain survives its errors and later stages consume the
// fallback result.
type TranscodeCommand struct {
	cor.BaseCommand
	config cloud.Transcoder
}

// NewTranscodeCommand builds the transcoding stage from its config block.
func NewTranscodeCommand(name string, config cloud.Transcoder) *TranscodeCommand {
	return &TranscodeCommand{
		BaseCommand: *cor.NewDegradableCommand(name),
		config:      config,
	}
}

// classify buckets the input by extension. Anything that is not
// recognizably audio or text is treated as video, which is the safe choice
// for an unknown container.
func classify(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExtensions[ext]:
		return MediaClassText
	case audioExtensions[ext]:
		return MediaClassAudio
	default:
		return MediaClassVideo
	}
}

// guessMIMEType sniffs the file's magic bytes, falling back to a coarse
// type derived from the media class.
func guessMIMEType(path string, mediaClass string) string {
	if kind, err := filetype.MatchFile(path); err == nil && kind.MIME.Value != "" {
		return kind.MIME.Value
	}
	switch mediaClass {
	case MediaClassAudio:
		return "audio/mpeg"
	case MediaClassText:
		return "text/plain"
	default:
		return "video/mp4"
	}
}

// buildArgs assembles the ffmpeg argv for the given media class. Paths are
// passed as whole arguments, never tokenized, so filenames with spaces
// survive. Video is bounded to a capped width with even-height aspect
// preservation and a capped frame rate; audio streams are downmixed to
// mono AAC at the target sample rate, with any video stream stripped from
// pure audio inputs.
func (c *TranscodeCommand) buildArgs(mediaClass string, inPath string, outPath string) []string {
	if mediaClass == MediaClassAudio {
		return []string{
			"-y", "-hide_banner",
			"-i", inPath,
			"-vn",
			"-ac", "1",
			"-ar", strconv.Itoa(c.config.AudioSampleRate),
			"-c:a", "aac",
			"-f", "adts",
			outPath,
		}
	}
	return []string{
		"-y", "-hide_banner",
		"-i", inPath,
		"-filter:v", fmt.Sprintf("scale=w=%d:h=trunc(ow/a/2)*2", c.config.VideoWidth),
		"-r", strconv.Itoa(c.config.VideoFPS),
		"-ac", "1",
		"-ar", strconv.Itoa(c.config.AudioSampleRate),
		"-c:a", "aac",
		"-f", "mp4",
		outPath,
	}
}

// Execute normalizes the job's file. On any ffmpeg failure the original
// file is passed through with a sniffed MIME type and a warning; the job
// never dies here.
func (c *TranscodeCommand) Execute(chainCtx cor.Context) {
	req := chainCtx.Get(c.GetInputParam()).(*model.JobRequest)
	chainCtx.Progress("transcoding media")

	name := req.Filename
	if name == "" {
		name = req.FilePath
	}
	mediaClass := classify(name)

	fallback := &TranscodeResult{
		Path:       req.FilePath,
		MediaClass: mediaClass,
		MIMEType:   guessMIMEType(req.FilePath, mediaClass),
		Transcoded: false,
	}

	// Text assets have nothing to transcode.
	if mediaClass == MediaClassText {
		fallback.MIMEType = "text/plain"
		c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
		c.emit(chainCtx, fallback)
		return
	}

	tempFile, err := os.CreateTemp("", transcodeTempPrefix)
	if err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddWarning(c.GetName(), fmt.Errorf("could not create transcode output file: %w", err))
		c.emit(chainCtx, fallback)
		return
	}
	_ = tempFile.Close()
	chainCtx.AddTempFile(tempFile.Name())

	outMIME := "video/mp4"
	if mediaClass == MediaClassAudio {
		outMIME = "audio/aac"
	}
	args := c.buildArgs(mediaClass, req.FilePath, tempFile.Name())

	runCtx := chainCtx.GetContext()
	if c.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, time.Duration(c.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.config.Path, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddWarning(c.GetName(), fmt.Errorf("ffmpeg failed, continuing with original file: %w", err))
		c.emit(chainCtx, fallback)
		return
	}

	c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
	c.emit(chainCtx, &TranscodeResult{
		Path:       tempFile.Name(),
		MIMEType:   outMIME,
		MediaClass: mediaClass,
		Transcoded: true,
	})
}

func (c *TranscodeCommand) emit(chainCtx cor.Context, result *TranscodeResult) {
	chainCtx.Add(GetTranscodeResultParameterName(), result)
	chainCtx.Add(c.GetOutputParam(), result)
}
