package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/z-wentao/polysub/pkg/models"
)

// GenerateSRT 把字幕段渲染为 SRT 文件
func GenerateSRT(segments []models.Segment, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建 SRT 文件失败: %w", err)
	}
	defer file.Close()

	var builder strings.Builder
	subtitleIndex := 1

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		// 1
		// 00:00:00,000 --> 00:00:05,200
		// 字幕文本
		//
		builder.WriteString(fmt.Sprintf("%d\n", subtitleIndex))
		builder.WriteString(fmt.Sprintf("%s --> %s\n", FormatSRTTime(seg.Start), FormatSRTTime(seg.End)))
		builder.WriteString(fmt.Sprintf("%s\n\n", text))

		subtitleIndex++
	}

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("写入 SRT 文件失败: %w", err)
	}

	return nil
}

// FormatSRTTime 将秒数格式化为 SRT 时间格式
// 例如: 65.5 -> 00:01:05,500（SRT 毫秒用逗号分隔）
func FormatSRTTime(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
