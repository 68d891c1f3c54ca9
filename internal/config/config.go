package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PERFREVIEW_"

// AppConfig 应用配置
type AppConfig struct {
	Server  ServerConfig  `toml:"server"`
	Data    DataConfig    `toml:"data"`
	Storage StorageConfig `toml:"storage"`
	Import  ImportConfig  `toml:"import"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver       string `toml:"driver"` // json | sqlite
	HistoryLimit int    `toml:"history_limit"`
}

// ImportConfig 上传导入配置
type ImportConfig struct {
	MaxUploadMB    int    `toml:"max_upload_mb"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Sheet          string `toml:"sheet"` // 为空时取第一个工作表
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | console
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string // 实际读取的配置文件，未找到时为空
	EnvFile       string // 实际加载的 .env，未找到时为空
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20261,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Storage: StorageConfig{
			Driver:       "json",
			HistoryLimit: 100,
		},
		Import: ImportConfig{
			MaxUploadMB:    10,
			TimeoutSeconds: 60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// MaxUploadBytes 上传大小上限（字节）
func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.Import.MaxUploadMB) << 20
}

// ImportTimeout 单次导入超时
func (c *AppConfig) ImportTimeout() time.Duration {
	return time.Duration(c.Import.TimeoutSeconds) * time.Second
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid storage.driver %q (want json or sqlite)", c.Storage.Driver)
	}
	if c.Storage.HistoryLimit <= 0 {
		return fmt.Errorf("storage.history_limit must be positive")
	}
	if c.Import.MaxUploadMB <= 0 {
		return fmt.Errorf("import.max_upload_mb must be positive")
	}
	if c.Import.TimeoutSeconds <= 0 {
		return fmt.Errorf("import.timeout_seconds must be positive")
	}
	if strings.TrimSpace(c.Data.DataDir) == "" {
		return fmt.Errorf("data.data_dir is required")
	}
	return nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func exeDirOrCwd() string {
	dir, err := GetExeDir()
	if err != nil {
		return "."
	}
	return dir
}

// DefaultConfigPath 可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	return filepath.Join(exeDirOrCwd(), "config.toml")
}

// LoadConfigWithInfo 加载配置：默认值 <- config.toml <- .env / 环境变量。
// path 为空时读取可执行文件同目录下的 config.toml；文件不存在时使用默认配置。
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	config := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.Path = path
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	info.EnvFile = loadDotEnv(filepath.Dir(path))
	if applyEnv(config) {
		info.PortSpecified = true
	}
	return config, info, nil
}

// LoadConfig 加载默认位置的配置
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo("")
	return config, err
}

// loadDotEnv 依次尝试配置目录与当前目录下的 .env；已存在的环境变量不会被覆盖
func loadDotEnv(configDir string) string {
	for _, candidate := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if !fileExists(candidate) {
			continue
		}
		if err := godotenv.Load(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// applyEnv 环境变量覆盖配置文件，返回是否指定了端口
func applyEnv(config *AppConfig) bool {
	portSet := false
	if v, ok := lookupInt("PORT"); ok {
		config.Server.Port = v
		portSet = true
	}
	if v, ok := lookupBool("DEV_MODE"); ok {
		config.Server.DevMode = v
	}
	if v, ok := lookup("DATA_DIR"); ok {
		config.Data.DataDir = v
	}
	if v, ok := lookup("STORAGE_DRIVER"); ok {
		config.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := lookupInt("HISTORY_LIMIT"); ok {
		config.Storage.HistoryLimit = v
	}
	if v, ok := lookupInt("MAX_UPLOAD_MB"); ok {
		config.Import.MaxUploadMB = v
	}
	if v, ok := lookupInt("IMPORT_TIMEOUT_SECONDS"); ok {
		config.Import.TimeoutSeconds = v
	}
	if v, ok := lookup("IMPORT_SHEET"); ok {
		config.Import.Sheet = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		config.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		config.Log.Format = v
	}
	return portSet
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func lookupInt(key string) (int, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupBool(key string) (bool, bool) {
	v, ok := lookup(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// SaveConfig 保存配置到 path
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveDataDir 相对路径的数据目录位于可执行文件同目录下
func ResolveDataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(exeDirOrCwd(), config.Data.DataDir)
}

// EnsureDataDir 确保数据目录及子目录存在
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := ResolveDataDir(config)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	subdirs := []string{"imports", "uploads", "exports"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// GetDataPath 获取数据文件路径
func GetDataPath(config *AppConfig, subdir, filename string) string {
	return filepath.Join(ResolveDataDir(config), subdir, filename)
}
