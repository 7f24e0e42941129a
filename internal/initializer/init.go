// Package initializer scaffolds a workspace: a config file holding every
// default and a providers file with the built-in provider table.
package initializer

import (
	"os"
	"path/filepath"

	"github.com/smy-101/skillcatalog/internal/config"
	"github.com/smy-101/skillcatalog/internal/fileutil"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	ConfigFile    = config.ConfigName + ".yaml"
	ProvidersFile = "providers.yaml"
)

type Initializer struct {
	dir   string
	force bool
}

// New returns an initializer writing into dir. Existing files are only
// replaced when force is set.
func New(dir string, force bool) *Initializer {
	if dir == "" {
		dir = "."
	}
	return &Initializer{dir: dir, force: force}
}

// Scaffold writes both files and returns their paths. Nothing is written
// when either file exists and force is not set.
func (i *Initializer) Scaffold() ([]string, error) {
	configPath := filepath.Join(i.dir, ConfigFile)
	providersPath := filepath.Join(i.dir, ProvidersFile)

	if !i.force {
		for _, p := range []string{configPath, providersPath} {
			if _, err := os.Stat(p); err == nil {
				return nil, &InitError{Type: ErrTypeExists, Path: p, Message: "文件已存在，使用 --force 覆盖"}
			}
		}
	}

	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return nil, &InitError{Type: ErrTypeDirCreate, Path: i.dir, Message: "无法创建目录", Err: err}
	}

	configData, err := RenderConfig(ProvidersFile)
	if err != nil {
		return nil, err
	}
	providersData, err := RenderProviders(provider.Defaults())
	if err != nil {
		return nil, err
	}

	batch := fileutil.NewBatch(0644)
	batch.Add(configPath, configData)
	batch.Add(providersPath, providersData)
	if _, err := batch.Commit(); err != nil {
		return nil, &InitError{Type: ErrTypeConfigWrite, Path: i.dir, Message: "无法写入配置文件", Err: err}
	}
	return []string{configPath, providersPath}, nil
}

// RenderConfig returns every default setting as YAML, pointing at providersFile.
func RenderConfig(providersFile string) ([]byte, error) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("providers_file", providersFile)

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, &InitError{Type: ErrTypeRender, Message: "无法生成配置", Err: err}
	}
	return data, nil
}

// RenderProviders returns the providers file for descriptors.
func RenderProviders(descriptors []types.ProviderDescriptor) ([]byte, error) {
	file := struct {
		Providers []types.ProviderDescriptor `yaml:"providers"`
	}{Providers: descriptors}

	data, err := yaml.Marshal(file)
	if err != nil {
		return nil, &InitError{Type: ErrTypeRender, Message: "无法生成 provider 列表", Err: err}
	}
	return data, nil
}
