package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/z-wentao/polysub/pkg/models"
)

// GenerateVTT 把字幕段渲染为 WebVTT 文件（用于 HTML5 video 播放）
// 段的顺序即时间顺序，起始时间单调不减
func GenerateVTT(segments []models.Segment, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建 VTT 文件失败: %w", err)
	}
	defer file.Close()

	var builder strings.Builder

	// VTT 文件必须以 "WEBVTT" 开头
	builder.WriteString("WEBVTT\n\n")

	subtitleIndex := 1
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		builder.WriteString(fmt.Sprintf("%d\n", subtitleIndex))
		builder.WriteString(fmt.Sprintf("%s --> %s\n", FormatVTTTime(seg.Start), FormatVTTTime(seg.End)))
		builder.WriteString(fmt.Sprintf("%s\n\n", text))

		subtitleIndex++
	}

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("写入 VTT 文件失败: %w", err)
	}

	return nil
}

// FormatVTTTime 将秒数格式化为 VTT 时间格式
// 例如: 65.5 -> 00:01:05.500
func FormatVTTTime(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
