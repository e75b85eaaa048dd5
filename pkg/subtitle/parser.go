package subtitle

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/z-wentao/polysub/pkg/models"
)

// 时间戳行：00:01:05.500 --> 00:01:07.200（SRT 用逗号，VTT 用点号）
var timePattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[.,]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[.,]\d{3})`)

// ParseFile 解析 VTT / SRT 字幕文件为 Cue 列表
func ParseFile(path string) ([]models.Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字幕文件失败: %v", err)
	}
	return Parse(string(data))
}

// Parse 解析 VTT / SRT 字幕内容
// 多行文本以 "\n" 保留，便于后续行数校验
func Parse(content string) ([]models.Cue, error) {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(content), "\r\n", "\n"), "\n")

	var cues []models.Cue
	var current *models.Cue
	var textLines []string

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, "\n"))
		if text != "" {
			current.Text = text
			current.Index = len(cues)
			cues = append(cues, *current)
		}
		current = nil
		textLines = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "WEBVTT" {
			continue
		}
		// 空行结束当前 cue，下一行的序号才不会被当成上一个 cue 的文本
		if line == "" {
			flush()
			continue
		}
		// 纯数字行是 cue 序号，跳过；cue 内部的纯数字行是正文，保留
		if current == nil && isDigits(line) {
			continue
		}

		if m := timePattern.FindStringSubmatch(line); m != nil {
			flush()
			start, err := ParseTimestamp(m[1])
			if err != nil {
				return nil, err
			}
			end, err := ParseTimestamp(m[2])
			if err != nil {
				return nil, err
			}
			if end <= start {
				return nil, fmt.Errorf("非法时间戳区间: %s", line)
			}
			current = &models.Cue{Start: start, End: end}
			continue
		}

		if current != nil {
			textLines = append(textLines, line)
		}
	}
	flush()

	return cues, nil
}

// ParseTimestamp 把 "HH:MM:SS.mmm"（或 SRT 的逗号变体）转换为秒
func ParseTimestamp(s string) (float64, error) {
	parts := strings.Split(strings.ReplaceAll(s, ",", "."), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("非法时间戳格式: %s", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("非法时间戳格式: %s", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("非法时间戳格式: %s", s)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("非法时间戳格式: %s", s)
	}
	return float64(hours)*3600 + float64(minutes)*60 + seconds, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
