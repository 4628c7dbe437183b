package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/any-hub/mediacache/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "mediacache.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediacache.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestMediaFields(t *testing.T) {
	fields := MediaFields("https://cdn.example.com/a.mp4", "widget-1", "hit", true)
	if fields["scheme"] != "https" {
		t.Fatalf("scheme 字段错误: %v", fields["scheme"])
	}
	if fields["consumer_id"] != "widget-1" || fields["cache_hit"] != true {
		t.Fatalf("字段内容错误: %v", fields)
	}
}

func TestInitLoggerDefaultsLevelAndTagsService(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{})
	if err != nil {
		t.Fatalf("空日志级别应使用默认值: %v", err)
	}
	if logger.GetLevel() != defaultLogLevel {
		t.Fatalf("期望默认级别 info，得到 %s", logger.GetLevel())
	}

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("action", "unit_test").Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("日志应为 JSON: %v (%s)", err, buf.String())
	}
	if record["service"] != ServiceName {
		t.Fatalf("缺少 service 字段: %v", record)
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("未知日志级别应返回错误")
	}
}

func TestBuildOutputAppliesRotationDefaults(t *testing.T) {
	cfg := config.GlobalConfig{LogFilePath: filepath.Join(t.TempDir(), "mediacache.log"), LogMaxBackups: -1}
	out, err := buildOutput(cfg)
	if err != nil {
		t.Fatalf("构建输出失败: %v", err)
	}
	rotator, ok := out.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("期望 lumberjack 输出，得到 %T", out)
	}
	if rotator.MaxSize != defaultLogMaxSizeMB || rotator.MaxBackups != 0 {
		t.Fatalf("轮转默认值错误: size=%d backups=%d", rotator.MaxSize, rotator.MaxBackups)
	}
}
