package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/mediacache/internal/cache"
	"github.com/any-hub/mediacache/internal/config"
	"github.com/any-hub/mediacache/internal/coordinator"
	"github.com/any-hub/mediacache/internal/fetcher"
	"github.com/any-hub/mediacache/internal/logging"
	"github.com/any-hub/mediacache/internal/proxy"
	"github.com/any-hub/mediacache/internal/server"
	"github.com/any-hub/mediacache/internal/server/routes"
	"github.com/any-hub/mediacache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

const configEnv = "MEDIACACHE_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["s3"] = s3Mode(cfg)
		fields["headers"] = cfg.HeaderSummary()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 磁盘缓存 → Downloader → Coordinator → Fiber server，
	// 所有请求共享同一个 Coordinator，保证同 key 拉取只发生一次。
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	downloaders, err := buildDownloaders(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 Downloader 失败: %v\n", err)
		return 1
	}

	coord, err := coordinator.New(coordinator.Options{
		Store:           store,
		Logger:          logger,
		Downloaders:     downloaders,
		Headers:         buildHeaders(cfg),
		LiveCapacity:    cfg.Global.LiveCapacity,
		RevivalCapacity: cfg.EffectiveRevivalCapacity(),
		NegativeTTL:     cfg.Global.NegativeTTL.DurationValue(),
		SweepAge:        cfg.EffectiveSweepAge(),
		Workers:         cfg.Global.FetchWorkers,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 Coordinator 失败: %v\n", err)
		return 1
	}
	defer coord.Close()

	mediaHandler := proxy.NewHandler(coord, logger, proxy.Options{
		DefaultMaxAge:  cfg.DefaultMaxAge(),
		RequestTimeout: cfg.Global.RequestTimeout.DurationValue(),
	})
	defer mediaHandler.Close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage"] = store.Dir()
	fields["downloaders"] = fetcher.Names(downloaders)
	fields["revival_capacity"] = cfg.EffectiveRevivalCapacity()
	fields["s3"] = s3Mode(cfg)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, mediaHandler, coord, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("mediacache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 MEDIACACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnv)
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// buildDownloaders 按内置顺序注册 Downloader；S3 与 content 仓库按配置启用。
func buildDownloaders(cfg *config.Config) ([]fetcher.Downloader, error) {
	var s3 *fetcher.S3Downloader
	if cfg.S3.Enabled() {
		d, err := fetcher.NewS3Downloader(fetcher.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		s3 = d
	}

	var content *fetcher.ContentDownloader
	if root := strings.TrimSpace(cfg.Global.ContentRoot); root != "" {
		content = fetcher.NewContentDownloaderAt(root)
	}

	return fetcher.Defaults(server.NewUpstreamClient(cfg), s3, content), nil
}

func buildHeaders(cfg *config.Config) fetcher.HeaderProvider {
	if len(cfg.Headers) == 0 {
		return nil
	}
	rules := make([]fetcher.HeaderRule, len(cfg.Headers))
	for i, h := range cfg.Headers {
		rules[i] = fetcher.HeaderRule{Prefix: h.Prefix, Name: h.Name, Value: h.Value}
	}
	return fetcher.NewStaticHeaders(rules)
}

func s3Mode(cfg *config.Config) string {
	if !cfg.S3.Enabled() {
		return "disabled"
	}
	return cfg.S3.AuthMode()
}

func startHTTPServer(cfg *config.Config, media server.MediaHandler, coord *coordinator.Coordinator, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Media:      media,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, coord)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
