package aligner

import (
	"fmt"
	"math"
	"strings"

	"github.com/z-wentao/polysub/pkg/models"
)

// 校验阈值
const (
	minCoverageCueDuration = 0.5  // 短于此的原始 cue 不参与覆盖检查（秒）
	minCoverageOverlap     = 0.1  // 每个原始 cue 至少要有这么多与某个段的重叠（秒）
	maxReadingSpeed        = 25.0 // 字符/秒，超过视为阅读过快
)

// Validate 对照原始轨道校验生成轨道：行数、全局时长、时间覆盖、阅读速度
// 纯函数，不修改输入。覆盖缺口是对齐兜底失败的主要暴露点。
func Validate(originalCues []models.Cue, segments []models.Segment) models.ValidationReport {
	report := models.ValidationReport{
		Errors:   []string{},
		Warnings: []string{},
	}

	if len(originalCues) == 0 {
		report.Errors = append(report.Errors, "原始字幕轨道为空")
	}
	if len(segments) == 0 {
		report.Errors = append(report.Errors, "生成的字幕轨道为空")
	}
	if len(report.Errors) > 0 {
		return report
	}

	report.Stats.SegmentCount = len(segments)

	// --- 1. 行数检查（理想 ≤2，3 行警告，>3 行错误）---
	for i, seg := range segments {
		lines := countLines(seg.Text)
		if lines > report.Stats.MaxLines {
			report.Stats.MaxLines = lines
		}
		if lines > 3 {
			report.Errors = append(report.Errors, fmt.Sprintf("段 %d 有 %d 行（上限 3 行）", i+1, lines))
		} else if lines == 3 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("段 %d 有 3 行（理想 2 行）", i+1))
		}
	}

	// --- 2. 全局时长一致性（容忍 10 秒或原时长 10%，取大者）---
	origDuration := originalCues[len(originalCues)-1].End - originalCues[0].Start
	targetDuration := segments[len(segments)-1].End - segments[0].Start
	report.Stats.OrigDuration = origDuration
	report.Stats.TargetDuration = targetDuration

	tolerance := math.Max(10.0, origDuration*0.10)
	if diff := math.Abs(origDuration - targetDuration); diff > tolerance {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("时长不一致: 原始=%.1fs, 生成=%.1fs (差 %.1fs)", origDuration, targetDuration, diff))
	}

	// --- 3. 覆盖检查：每个 ≥0.5s 的原始 cue 必须与某个段有 ≥100ms 重叠 ---
	for _, cue := range originalCues {
		if cue.Duration() < minCoverageCueDuration {
			continue
		}
		if !isCovered(cue, segments) {
			report.Stats.UncoveredCues++
			report.Errors = append(report.Errors,
				fmt.Sprintf("缺少译文: 原始 cue [%.1fs - %.1fs] 没有对应的字幕段", cue.Start, cue.End))
		}
	}

	// --- 4. 阅读速度检查（CPS > 25 警告，汇总上报）---
	highCPS := 0
	for i, seg := range segments {
		if seg.Duration() < 0.1 || seg.Text == "" {
			continue
		}
		cps := float64(runeLen(seg.Text)) / seg.Duration()
		if cps > maxReadingSpeed {
			highCPS++
			// 只详细记录前几条，避免刷屏
			if highCPS <= 3 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("段 %d 阅读速度过快 (%.1f CPS): %.30s...", i+1, cps, seg.Text))
			}
		}
	}
	if highCPS > 0 {
		report.Stats.HighCPSSegments = highCPS
		report.Warnings = append(report.Warnings, fmt.Sprintf("共 %d 个段的 CPS 超过 %.0f", highCPS, maxReadingSpeed))
	}

	report.Valid = len(report.Errors) == 0
	return report
}

func isCovered(cue models.Cue, segments []models.Segment) bool {
	for _, seg := range segments {
		overlap := math.Min(cue.End, seg.End) - math.Max(cue.Start, seg.Start)
		if overlap >= minCoverageOverlap {
			return true
		}
	}
	return false
}

func countLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
