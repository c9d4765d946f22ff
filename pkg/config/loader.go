package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholderRe = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// envPrefix 系统环境变量覆盖的前缀，"__" 分隔层级
const envPrefix = "KITDASH_"

// LoadConfig 按顺序叠加配置层，后者覆盖前者：
//
//	base.yaml -> <env>.yaml -> ${VAR} 占位符（secrets.env 优先，其次进程环境）-> KITDASH_* 环境变量
//
// configDir 为空时使用 "config"；<env>.yaml 和 secrets.env 都是可选的
func LoadConfig(env string, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		overlay, err := loadYAMLFile(filepath.Join(configDir, env+".yaml"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
		default:
			merged = mergeMaps(merged, overlay)
		}
	}

	secrets, err := loadEnvFile(filepath.Join(configDir, "secrets.env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load secrets.env: %w", err)
	}
	merged = expandPlaceholders(merged, func(name string) (string, bool) {
		if v, ok := secrets[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}).(map[string]interface{})

	overrideFromSystemEnv(merged)
	return merged, nil
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// loadEnvFile 解析 KEY=VALUE 行，忽略空行和 # 注释，去掉值两侧的引号
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		env[strings.TrimSpace(key)] = value
	}
	return env, sc.Err()
}

// mergeMaps 返回新 map，嵌套 map 递归合并，其他值由 src 覆盖
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		dstChild, dstOK := out[k].(map[string]interface{})
		srcChild, srcOK := v.(map[string]interface{})
		if dstOK && srcOK {
			out[k] = mergeMaps(dstChild, srcChild)
			continue
		}
		out[k] = v
	}
	return out
}

// expandPlaceholders 替换字符串里的 ${VAR}；找不到的占位符原样保留
func expandPlaceholders(v interface{}, lookup func(string) (string, bool)) interface{} {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "${") {
			return val
		}
		return placeholderRe.ReplaceAllStringFunc(val, func(m string) string {
			if s, ok := lookup(m[2 : len(m)-1]); ok {
				return s
			}
			return m
		})
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = expandPlaceholders(child, lookup)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = expandPlaceholders(child, lookup)
		}
		return out
	default:
		return v
	}
}

// overrideFromSystemEnv KITDASH_DASHBOARD__CACHE_TTL_SECONDS=30 覆盖 dashboard.cache_ttl_seconds
func overrideFromSystemEnv(config map[string]interface{}) {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(name, envPrefix)), "__")
		setPath(config, path, value)
	}
}

// setPath 按路径写入嵌套 map，中间节点不存在时创建
func setPath(m map[string]interface{}, path []string, value string) {
	if len(path) == 0 || path[0] == "" {
		return
	}
	if len(path) == 1 {
		// 按 YAML 标量解析，保证 "30" -> int、"true" -> bool
		var scalar interface{}
		if err := yaml.Unmarshal([]byte(value), &scalar); err != nil || scalar == nil {
			scalar = value
		}
		m[path[0]] = scalar
		return
	}
	child, ok := m[path[0]].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		m[path[0]] = child
	}
	setPath(child, path[1:], value)
}

// Decode 将合并后的配置 map 解码到结构体
func Decode(merged map[string]interface{}, out interface{}) error {
	data, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal merged config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode merged config: %w", err)
	}
	return nil
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（从环境变量 CONFIG_ENV，默认为 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
